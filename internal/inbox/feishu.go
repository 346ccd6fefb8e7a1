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

type feishuURLVerification struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

type feishuEvent struct {
	Schema string `json:"schema"`
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderId struct {
				OpenId string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			MessageId string `json:"message_id"`
			ChatId    string `json:"chat_id"`
			MsgType   string `json:"message_type"`
			Content   string `json:"content"`
			CreateTime string `json:"create_time"`
		} `json:"message"`
	} `json:"event"`
}

// feishuTextContent is the JSON shape Feishu nests inside
// event.message.content for a "text" message_type.
type feishuTextContent struct {
	Text string `json:"text"`
}

// FeishuHandler implements Handler for Feishu/Lark event callbacks:
// optional HMAC signature and a url_verification challenge-echo branch
// (spec §4.7). Encrypted bodies (an "encrypt" envelope) are not
// decrypted; such a body yields no message.
type FeishuHandler struct{}

func (FeishuHandler) Type() string { return "feishu" }

func (h FeishuHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	var probe feishuURLVerification
	if err := json.Unmarshal(req.Body, &probe); err == nil && probe.Type == "url_verification" {
		return []byte(fmt.Sprintf(`{"challenge":%q}`, probe.Challenge)), nil
	}

	secret, _ := platform.Config["lark_signature_secret"].(string)
	sig := req.Header.Get("X-Lark-Signature")
	if secret == "" || sig == "" {
		return nil, nil // signature verification is optional per spec §4.7
	}

	timestamp := req.Header.Get("X-Lark-Request-Timestamp")
	nonce := req.Header.Get("X-Lark-Request-Nonce")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	mac.Write([]byte(secret))
	mac.Write(req.Body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if expected != sig {
		return nil, errs.New(errs.SignatureMismatch, "feishu signature mismatch")
	}
	return nil, nil
}

func (h FeishuHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
	var evt feishuEvent
	if err := json.Unmarshal(req.Body, &evt); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse feishu event", err)
	}
	if evt.Event.Message.MessageId == "" {
		return nil, nil // not a message event (e.g. a bot-added event); nothing to intake
	}

	content := evt.Event.Message.Content
	if evt.Event.Message.MsgType == "text" {
		var text feishuTextContent
		if err := json.Unmarshal([]byte(content), &text); err == nil {
			content = text.Text
		}
	} else if content != "" {
		content = placeholderContent(evt.Event.Message.MsgType, content)
	}

	receivedAt := time.Now().UTC()

	return []NormalizedMessage{{
		MessageID:       evt.Event.Message.MessageId,
		FromUser:        evt.Event.Sender.SenderId.OpenId,
		ConversationKey: evt.Event.Message.ChatId,
		MsgType:         evt.Event.Message.MsgType,
		Content:         content,
		ReceivedAt:      receivedAt,
		RawPayload:      map[string]any{"event_type": evt.Header.EventType},
	}}, nil
}
