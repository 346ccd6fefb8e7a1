// Package errs defines the typed error kinds shared across the control
// plane so handlers can map failures to a stable response shape without
// depending on exception-class identity.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories surfaced by name.
type Kind string

const (
	NotFound          Kind = "NotFound"
	Forbidden         Kind = "Forbidden"
	InvalidPayload    Kind = "InvalidPayload"
	SignatureMismatch Kind = "SignatureMismatch"
	Unauthorized      Kind = "Unauthorized"
	ConfigMissing     Kind = "ConfigMissing"
	UpstreamFailure   Kind = "UpstreamFailure"
	Conflict          Kind = "Conflict"
	InternalError     Kind = "InternalError"
)

// Error is the typed error carried through pipeline steps and handlers.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an upstream cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured details (used by handlers to populate
// ErrorResponse.error.details) and returns the same *Error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, defaulting to InternalError for
// errors that were not constructed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
