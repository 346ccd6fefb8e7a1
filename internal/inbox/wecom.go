package inbox

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

// wecomEnvelope is the XML wrapper WeCom wraps every encrypted callback
// body in.
type wecomEnvelope struct {
	XMLName xml.Name `xml:"xml"`
	Encrypt string   `xml:"Encrypt"`
}

// wecomMessage is the decrypted inner XML payload for a customer-service
// callback event.
type wecomMessage struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Event        string   `xml:"Event"`
	Token        string   `xml:"Token"` // kf_msg_or_event pull token
	Content      string   `xml:"Content"`
	MsgId        string   `xml:"MsgId"`
	PicUrl       string   `xml:"PicUrl"`
}

// WeComHandler implements Handler for WeCom customer-service callbacks:
// SHA-1 signature verification, AES-256-CBC decryption, and the
// kf_msg_or_event pull-token special case (spec §4.7).
type WeComHandler struct{}

func (WeComHandler) Type() string { return "wecom" }

func wecomConfigStrings(platform *models.Platform, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := platform.Config[k].(string)
		if !ok || v == "" {
			return nil, errs.Newf(errs.ConfigMissing, "platform %s missing config key %q", platform.ID, k)
		}
		out[k] = v
	}
	return out, nil
}

// Authenticate verifies msg_signature over (token, timestamp, nonce,
// encrypted_body) and, on a GET request (URL verification), decrypts
// and returns echostr as the challenge response (spec §6 "GET branch for
// WeCom URL verification").
func (h WeComHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	cfg, err := wecomConfigStrings(platform, "token", "encoding_aes_key")
	if err != nil {
		return nil, err
	}

	signature := req.Query.Get("msg_signature")
	timestamp := req.Query.Get("timestamp")
	nonce := req.Query.Get("nonce")

	if echostr := req.Query.Get("echostr"); echostr != "" {
		if wecomSignature(cfg["token"], timestamp, nonce, echostr) != signature {
			return nil, errs.New(errs.SignatureMismatch, "wecom url verification signature mismatch")
		}
		corpID, _ := platform.Config["corp_id"].(string)
		payload, _, err := wecomDecrypt(cfg["encoding_aes_key"], echostr, corpID)
		if err != nil {
			return nil, errs.Wrap(errs.SignatureMismatch, "decrypt echostr", err)
		}
		return payload, nil
	}

	env, err := parseWecomEnvelope(req.Body)
	if err != nil {
		return nil, err
	}
	if wecomSignature(cfg["token"], timestamp, nonce, env.Encrypt) != signature {
		return nil, errs.New(errs.SignatureMismatch, "wecom callback signature mismatch")
	}
	return nil, nil
}

func parseWecomEnvelope(body []byte) (*wecomEnvelope, error) {
	var env wecomEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse wecom envelope", err)
	}
	if env.Encrypt == "" {
		return nil, errs.New(errs.InvalidPayload, "wecom envelope missing Encrypt")
	}
	return &env, nil
}

// Normalize decrypts the envelope and extracts one message. A
// kf_msg_or_event event carries no message content of its own — the
// handler surfaces it as a placeholder keyed by the pull token, matching
// spec §4.7's "triggers a pull using the event token" special case.
func (h WeComHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
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
		return nil, errs.Wrap(errs.InvalidPayload, "decrypt wecom message", err)
	}

	var msg wecomMessage
	if err := xml.Unmarshal(plain, &msg); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse wecom message", err)
	}

	content := msg.Content
	msgType := msg.MsgType
	messageID := msg.MsgId
	if msg.Event == "kf_msg_or_event" {
		msgType = "event"
		content = placeholderContent("event", fmt.Sprintf("kf_msg_or_event token=%s", msg.Token))
		messageID = "kf:" + msg.Token
	} else if content == "" {
		switch msgType {
		case "image":
			content = placeholderContent("image", msg.PicUrl)
		case "":
			content = placeholderContent("event", msg.Event)
			msgType = "event"
		default:
			content = placeholderContent(msgType, "")
		}
	}
	if messageID == "" {
		messageID = fmt.Sprintf("%s:%d", msg.FromUserName, msg.CreateTime)
	}

	return []NormalizedMessage{{
		MessageID:       messageID,
		FromUser:        msg.FromUserName,
		ConversationKey: msg.ToUserName,
		MsgType:         msgType,
		Content:         content,
		ReceivedAt:      time.Unix(msg.CreateTime, 0).UTC(),
		RawPayload:      map[string]any{"to_user_name": msg.ToUserName, "msg_type": msg.MsgType, "event": msg.Event},
	}}, nil
}
