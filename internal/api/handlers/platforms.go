package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deskwise/deskwise/internal/errs"
)

// PlatformCallback handles both GET and POST on
// /v1/platforms/callback/{api_key} (spec §4.7, §6). GET carries a
// platform's URL-verification challenge (WeCom, Feishu) in the query
// string; POST carries the actual message payload. Both funnel through
// the same Dispatcher.HandleCallback, which returns a non-nil
// ChallengeResponse precisely when no messages should be normalized.
func (h *Handlers) PlatformCallback(w http.ResponseWriter, r *http.Request) {
	apiKey := chi.URLParam(r, "api_key")
	h.handlePlatformCallback(w, r, apiKey)
}

// WuKongIMWebhook handles POST /integrations/wukongim/webhook?event=…&api_key=….
// The substrate's webhook contract has no path segment for a platform
// identifier, so the api_key travels as a query parameter instead and is
// resolved through the same Dispatcher used by the path-scoped callback
// route (an addition beyond the literal §6 listing, since the webhook
// still needs some way to resolve which Platform row it belongs to).
func (h *Handlers) WuKongIMWebhook(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")
	if apiKey == "" {
		badRequest(w, "api_key query parameter is required")
		return
	}
	h.handlePlatformCallback(w, r, apiKey)
}

func (h *Handlers) handlePlatformCallback(w http.ResponseWriter, r *http.Request, apiKey string) {
	if apiKey == "" {
		writeError(w, errs.New(errs.InvalidPayload, "api_key is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}

	result, err := h.Dispatcher.HandleCallback(r.Context(), apiKey, r.Header, r.URL.Query(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.ChallengeResponse != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.ChallengeResponse)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":  result.Accepted,
		"duplicate": result.Duplicate,
	})
}
