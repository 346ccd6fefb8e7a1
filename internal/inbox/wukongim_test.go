package inbox

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/pkg/models"
)

func encodePayload(t *testing.T, p wukongimPayload) string {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestWuKongIMHandlerSkipsStaffUIDs(t *testing.T) {
	h := WuKongIMHandler{}
	batch := []wukongimMessage{
		{MessageId: "1", FromUID: "visitor-vtr", ChannelID: "ch1", Payload: encodePayload(t, wukongimPayload{Content: "hi"})},
		{MessageId: "2", FromUID: "agent-staff", ChannelID: "ch1", Payload: encodePayload(t, wukongimPayload{Content: "reply"})},
	}
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	req := CallbackRequest{Header: http.Header{}, Query: url.Values{"event": {"msg.notify"}}, Body: body}
	msgs, err := h.Normalize(req, &models.Platform{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "visitor-vtr", msgs[0].FromUser)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestWuKongIMHandlerAuthenticateRequiresMsgNotifyEvent(t *testing.T) {
	h := WuKongIMHandler{}
	_, err := h.Authenticate(CallbackRequest{Query: url.Values{"event": {"user.onlinestatus"}}}, &models.Platform{})
	assert.Error(t, err)

	_, err = h.Authenticate(CallbackRequest{Query: url.Values{"event": {"msg.notify"}}}, &models.Platform{})
	assert.NoError(t, err)
}
