package inbox

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

type telegramUser struct {
	ID int64 `json:"id"`
}

type telegramMessage struct {
	MessageId int64  `json:"message_id"`
	Date      int64  `json:"date"`
	From      telegramUser `json:"from"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type telegramUpdate struct {
	UpdateId      int64            `json:"update_id"`
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
	ChannelPost   *telegramMessage `json:"channel_post"`
}

// TelegramHandler implements Handler for Telegram Bot API webhooks: an
// optional shared-secret header check and update-envelope selection
// across message/edited_message/channel_post (spec §4.7).
type TelegramHandler struct{}

func (TelegramHandler) Type() string { return "telegram" }

func (h TelegramHandler) Authenticate(req CallbackRequest, platform *models.Platform) ([]byte, error) {
	secret, ok := platform.Config["secret_token"].(string)
	if !ok || secret == "" {
		return nil, nil // the header check is optional per spec §4.7
	}
	if req.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
		return nil, errs.New(errs.Unauthorized, "telegram secret token mismatch")
	}
	return nil, nil
}

// selectMessage picks the most relevant sub-message out of an update's
// envelope (spec §4.7 "Telegram's update envelope selects the most
// relevant sub-message").
func (u *telegramUpdate) selectMessage() *telegramMessage {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	default:
		return nil
	}
}

func (h TelegramHandler) Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error) {
	var update telegramUpdate
	if err := json.Unmarshal(req.Body, &update); err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, "parse telegram update", err)
	}

	msg := update.selectMessage()
	if msg == nil {
		return nil, nil
	}

	content := msg.Text
	if content == "" {
		content = placeholderContent("event", "")
	}

	return []NormalizedMessage{{
		MessageID:       strconv.FormatInt(update.UpdateId, 10) + ":" + strconv.FormatInt(msg.MessageId, 10),
		FromUser:        strconv.FormatInt(msg.From.ID, 10),
		ConversationKey: strconv.FormatInt(msg.Chat.ID, 10),
		MsgType:         "text",
		Content:         content,
		ReceivedAt:      time.Unix(msg.Date, 0).UTC(),
		RawPayload:      map[string]any{"update_id": update.UpdateId},
	}}, nil
}
