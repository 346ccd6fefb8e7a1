package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/errs"
)

// errorResponse is the stable JSON shape spec §7 requires:
// {"error": {"code", "message", "details"}}.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// statusFor maps an errs.Kind to the HTTP status spec §7 names.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Forbidden:
		return http.StatusForbidden
	case errs.InvalidPayload:
		return http.StatusUnprocessableEntity
	case errs.SignatureMismatch, errs.Unauthorized:
		return http.StatusUnauthorized
	case errs.ConfigMissing:
		return http.StatusUnprocessableEntity
	case errs.UpstreamFailure:
		return http.StatusBadGateway
	case errs.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err to the stable ErrorResponse shape (spec §7). An
// InternalError is logged with its cause; the client only ever sees the
// kind and message.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	var details map[string]any
	var typed *errs.Error
	if e, ok := err.(*errs.Error); ok {
		typed = e
		details = e.Details
	}

	msg := err.Error()
	if typed != nil {
		msg = typed.Message
	}

	if kind == errs.InternalError {
		log.Error().Err(err).Msg("api: internal error")
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: string(kind), Message: msg, Details: details}})
}

// badRequest is a convenience for payloads that fail validation before a
// typed errs.Error is constructed (spec §7 InvalidPayload → 400/422; we
// use 400 here since these are malformed, not semantically rejected).
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: string(errs.InvalidPayload), Message: msg}})
}
