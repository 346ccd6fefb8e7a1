package inbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

// wecomBotMessage is the decrypted JSON payload a WeCom group robot
// callback delivers (as opposed to the XML customer-service envelope).
type wecomBotMessage struct {
	MsgId   string `json:"msgid"`
	From    struct {
		UserId string `json:"userid"`
	} `json:"from"`
	ChatId  string `json:"chatid"`
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
}

// WeComBotHandler implements Handler for WeCom group robot callbacks:
// same SHA-1/AES envelope as WeComHandler, JSON payload instead of XML.
type WeComBotHandler struct{}

func (WeComBotHandler) Type() string { return "wecom_bot" }

func (h WeComBotHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	return WeComHandler{}.Authenticate(req, platform)
}

// Normalize decrypts the envelope and parses the inner JSON payload.
// WeCom bot callbacks are documented with an inconsistent receive_id: some
// tenants configure a corp_id receive_id, others send an empty one. This
// tries decryption validated against the platform's corp_id first, then
// falls back to an unvalidated decrypt (empty expected receive_id always
// passes validation) — the same two-attempt order as
// `_wecom_decrypt_message(..., corp_id)` then `_wecom_decrypt_message(..., "")`
// in original_source/repos/tgo-platform/app/api/v1/callbacks.py, carried as-is
// from the upstream behavior without further tightening.
func (h WeComBotHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
	cfg, err := wecomConfigStrings(platform, "encoding_aes_key")
	if err != nil {
		return nil, err
	}
	env, err := parseWecomEnvelope(req.Body)
	if err != nil {
		return nil, err
	}

	corpID, _ := platform.Config["corp_id"].(string)
	plain, _, err := wecomDecrypt(cfg["encoding_aes_key"], env.Encrypt, corpID)
	if err != nil {
		plain, _, err = wecomDecrypt(cfg["encoding_aes_key"], env.Encrypt, "")
	}
	if err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "decrypt wecom bot message", err)
	}

	var msg wecomBotMessage
	if err := json.Unmarshal(plain, &msg); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse wecom bot message", err)
	}

	content := msg.Text.Content
	if content == "" {
		switch msg.MsgType {
		case "image":
			content = placeholderContent("image", msg.Image.URL)
		default:
			content = placeholderContent(msg.MsgType, "")
		}
	}
	messageID := msg.MsgId
	if messageID == "" {
		messageID = fmt.Sprintf("%s:%s:%d", msg.ChatId, msg.From.UserId, time.Now().UnixNano())
	}

	return []NormalizedMessage{{
		MessageID:       messageID,
		FromUser:        msg.From.UserId,
		ConversationKey: msg.ChatId,
		MsgType:         msg.MsgType,
		Content:         content,
		ReceivedAt:      time.Now().UTC(),
		RawPayload:      map[string]any{"msgtype": msg.MsgType, "chatid": msg.ChatId},
	}}, nil
}
