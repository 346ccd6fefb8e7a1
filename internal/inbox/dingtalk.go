package inbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

type dingtalkMessage struct {
	MsgId        string `json:"msgId"`
	MsgType      string `json:"msgtype"`
	SenderId     string `json:"senderId"`
	ConversationId string `json:"conversationId"`
	Text         struct {
		Content string `json:"content"`
	} `json:"text"`
	CreateAt int64 `json:"createAt"`
}

// DingTalkHandler implements Handler for DingTalk robot callbacks: an
// HMAC-SHA256 signature over `timestamp + "\n" + secret`, compared against
// X-DingTalk-Sign (spec §4.7).
type DingTalkHandler struct{}

func (DingTalkHandler) Type() string { return "dingtalk" }

func (h DingTalkHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	secret, ok := platform.Config["secret"].(string)
	if !ok || secret == "" {
		return nil, errs.New(errs.ConfigMissing, "platform missing dingtalk secret")
	}

	timestamp := req.Header.Get("timestamp")
	sign := req.Header.Get("X-DingTalk-Sign")
	if timestamp == "" || sign == "" {
		return nil, errs.New(errs.Unauthorized, "missing dingtalk timestamp/sign headers")
	}

	stringToSign := fmt.Sprintf("%s\n%s", timestamp, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if expected != sign {
		return nil, errs.New(errs.SignatureMismatch, "dingtalk signature mismatch")
	}
	return nil, nil
}

func (h DingTalkHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
	var msg dingtalkMessage
	if err := json.Unmarshal(req.Body, &msg); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse dingtalk message", err)
	}

	content := msg.Text.Content
	if msg.MsgType != "text" {
		content = placeholderContent(msg.MsgType, content)
	}

	receivedAt := time.Now().UTC()
	if msg.CreateAt > 0 {
		receivedAt = time.UnixMilli(msg.CreateAt).UTC()
	}

	return []NormalizedMessage{{
		MessageID:       msg.MsgId,
		FromUser:        msg.SenderId,
		ConversationKey: msg.ConversationId,
		MsgType:         msg.MsgType,
		Content:         content,
		ReceivedAt:      receivedAt,
		RawPayload:      map[string]any{"msgtype": msg.MsgType},
	}}, nil
}
