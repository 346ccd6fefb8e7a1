// Package inbox implements the C7 Inbox Intake component: one Handler per
// platform type behind a single webhook endpoint, normalizing and
// persisting inbound messages with at-most-once semantics (spec §4.7).
package inbox

import (
	"net/http"
	"net/url"
	"time"

	"github.com/deskwise/deskwise/pkg/models"
)

// NormalizedMessage is the common shape every Handler extracts from a
// platform-specific payload before it is persisted as an InboxMessage
// (spec §4.7 step 2 "Normalize").
type NormalizedMessage struct {
	MessageID       string
	FromUser        string
	ConversationKey string
	MsgType         string
	Content         string
	ReceivedAt      time.Time
	RawPayload      map[string]any
}

// CallbackRequest carries everything a Handler needs out of the inbound
// HTTP request: headers and query for authentication, raw body for
// signature verification and decryption.
type CallbackRequest struct {
	Header http.Header
	Query  url.Values
	Body   []byte
}

// Handler is the closed, tagged-variant dispatch surface: one
// implementation per platform type (spec §4.7 "One handler per platform
// type" / §9 Design Notes "closed tagged-variant dispatch").
type Handler interface {
	// Type reports the Platform.Type this handler serves (e.g. "wecom").
	Type() string
	// Authenticate verifies the callback's signature/secret/challenge
	// against the platform's stored config. A non-nil challenge response
	// short-circuits normalization (used by Feishu/WeCom URL verification).
	Authenticate(req CallbackRequest, platform *models.Platform) (challengeResponse []byte, err error)
	// Normalize extracts zero or more messages from the callback body.
	// Unknown message types are captured as a labeled placeholder so
	// downstream code always has a content string (spec §4.7 step 2).
	Normalize(req CallbackRequest, platform *models.Platform) ([]NormalizedMessage, error)
}

// placeholderContent formats an opaque payload as "[kind] ..." for a
// message type this handler doesn't natively understand.
func placeholderContent(kind, raw string) string {
	if len(raw) > 500 {
		raw = raw[:500]
	}
	return "[" + kind + "] " + raw
}
