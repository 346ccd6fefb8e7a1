package inbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/pkg/models"
)

func dingtalkSign(t *testing.T, secret, timestamp string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := mac.Write([]byte(timestamp + "\n" + secret))
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestDingTalkAuthenticateAcceptsValidSignature(t *testing.T) {
	platform := &models.Platform{Config: map[string]any{"secret": "s3cr3t"}}
	header := http.Header{}
	header.Set("timestamp", "1700000000000")
	header.Set("X-DingTalk-Sign", dingtalkSign(t, "s3cr3t", "1700000000000"))

	_, err := (DingTalkHandler{}).Authenticate(CallbackRequest{Header: header}, platform)
	assert.NoError(t, err)
}

func TestDingTalkAuthenticateRejectsBadSignature(t *testing.T) {
	platform := &models.Platform{Config: map[string]any{"secret": "s3cr3t"}}
	header := http.Header{}
	header.Set("timestamp", "1700000000000")
	header.Set("X-DingTalk-Sign", "not-the-right-signature")

	_, err := (DingTalkHandler{}).Authenticate(CallbackRequest{Header: header}, platform)
	assert.Error(t, err)
}
