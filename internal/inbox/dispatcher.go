package inbox

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// sourceTable maps a platform type to the per-source inbox table name
// used for the (platform_id, message_id) uniqueness constraint (spec
// §4.7: "Insert one row into the source-specific inbox table").
var sourceTable = map[string]string{
	"wecom":     "wecom_inbox",
	"wecom_bot": "wecom_bot_inbox",
	"feishu":    "feishu_inbox",
	"dingtalk":  "dingtalk_inbox",
	"telegram":  "telegram_inbox",
	"wukongim":  "wukongim_inbox",
}

// Dispatcher resolves a platform by API key and routes its callback body
// to the matching Handler (spec §4.7).
type Dispatcher struct {
	store    store.Store
	handlers map[string]Handler
}

// NewDispatcher builds a Dispatcher with one Handler registered per
// platform type (spec §9 "closed tagged-variant dispatch").
func NewDispatcher(s store.Store) *Dispatcher {
	d := &Dispatcher{store: s, handlers: make(map[string]Handler)}
	for _, h := range []Handler{
		WeComHandler{}, WeComBotHandler{}, FeishuHandler{}, DingTalkHandler{}, TelegramHandler{}, WuKongIMHandler{},
	} {
		d.handlers[h.Type()] = h
	}
	return d
}

// Result is what HandleCallback hands back to the HTTP layer: the
// response body (a challenge echo, if any) and how many messages were
// newly persisted vs. already seen.
type Result struct {
	ChallengeResponse []byte
	Accepted          int
	Duplicate         int
}

// HandleCallback resolves the platform, authenticates, normalizes, and
// persists messages — duplicates are logged and treated as success so the
// webhook always gets a fast 200 (spec §4.7 steps 1–4).
func (d *Dispatcher) HandleCallback(ctx context.Context, apiKey string, header http.Header, query url.Values, body []byte) (*Result, error) {
	platform, err := d.store.GetPlatformByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "platform not found for api key", err)
	}
	if !platform.IsActive || platform.DeletedAt != nil {
		return nil, errs.New(errs.NotFound, "platform is not active")
	}

	handler, ok := d.handlers[platform.Type]
	if !ok {
		return nil, errs.Newf(errs.InvalidPayload, "no inbox handler registered for platform type %q", platform.Type)
	}

	req := CallbackRequest{Header: header, Query: query, Body: body}
	challenge, err := handler.Authenticate(req, platform)
	if err != nil {
		return nil, err
	}
	if challenge != nil {
		return &Result{ChallengeResponse: challenge}, nil
	}

	messages, err := handler.Normalize(req, platform)
	if err != nil {
		return nil, err
	}

	table := sourceTable[platform.Type]
	result := &Result{}
	for _, m := range messages {
		received := m.ReceivedAt
		if received.IsZero() {
			received = time.Now().UTC()
		}
		msg := &models.InboxMessage{
			ID:              uuid.NewString(),
			PlatformID:      platform.ID,
			SourceTable:     table,
			MessageID:       m.MessageID,
			FromUser:        m.FromUser,
			ConversationKey: m.ConversationKey,
			MsgType:         m.MsgType,
			Content:         m.Content,
			RawPayload:      m.RawPayload,
			Status:          models.InboxStatusPending,
			ReceivedAt:      received,
		}
		if err := d.store.CreateInboxMessage(ctx, table, msg); err != nil {
			if _, ok := err.(*store.ErrDuplicateMessage); ok {
				log.Info().Str("platform_id", platform.ID).Str("message_id", m.MessageID).Msg("inbox: duplicate message, treating as success")
				result.Duplicate++
				continue
			}
			return nil, err
		}
		result.Accepted++
	}
	return result, nil
}
