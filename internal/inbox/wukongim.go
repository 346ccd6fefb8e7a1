package inbox

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

const wukongimStaffUIDSuffix = "-staff"

// wukongimMessage is one entry of a msg.notify batch.
type wukongimMessage struct {
	MessageId  string `json:"message_id"`
	FromUID    string `json:"from_uid"`
	ChannelID  string `json:"channel_id"`
	Payload    string `json:"payload"` // base64-encoded JSON, per the substrate's uniform encoding
	Timestamp  int64  `json:"timestamp"`
}

type wukongimPayload struct {
	Type    int    `json:"type"`
	Content string `json:"content"`
}

// WuKongIMHandler implements Handler for the WuKongIM messaging substrate:
// a query-param event selector and a JSON array of messages, one HTTP
// call per event. Messages from staff UIDs are skipped, since those are
// echoes of operator sends rather than new visitor intake (spec §4.7).
type WuKongIMHandler struct{}

func (WuKongIMHandler) Type() string { return "wukongim" }

func (h WuKongIMHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	if req.Query.Get("event") != "msg.notify" {
		return nil, errs.New(errs.InvalidPayload, "unsupported wukongim event")
	}
	return nil, nil
}

func (h WuKongIMHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
	var batch []wukongimMessage
	if err := json.Unmarshal(req.Body, &batch); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse wukongim batch", err)
	}

	var out []NormalizedMessage
	for _, m := range batch {
		if strings.HasSuffix(m.FromUID, wukongimStaffUIDSuffix) {
			continue
		}

		content := ""
		msgType := "text"
		if decoded, err := decodeBase64JSON[wukongimPayload](m.Payload); err == nil {
			content = decoded.Content
		} else {
			content = placeholderContent("event", m.Payload)
			msgType = "event"
		}

		out = append(out, NormalizedMessage{
			MessageID:       m.MessageId,
			FromUser:        m.FromUID,
			ConversationKey: m.ChannelID,
			MsgType:         msgType,
			Content:         content,
			ReceivedAt:      time.Unix(m.Timestamp, 0).UTC(),
			RawPayload:      map[string]any{"channel_id": m.ChannelID},
		})
	}
	return out, nil
}
