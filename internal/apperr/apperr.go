// Package apperr defines the user-visible error categories shared by the
// event lifecycle, the HTTP boundary, and the chat replies.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a user-visible error category.
type Kind string

const (
	// InvalidInput means the caller violated a precondition.
	InvalidInput Kind = "invalid_input"
	// NotFound means a referenced event, user, or token is missing or expired.
	NotFound Kind = "not_found"
	// InvalidState means the operation is not legal in the current event state.
	InvalidState Kind = "invalid_state"
	// Unauthorized means the caller lacks creator privilege.
	Unauthorized Kind = "unauthorized"
	// Conflict means an idempotent re-apply; callers treat it as success.
	Conflict Kind = "conflict"
	// Transient means a store or chat transport failure.
	Transient Kind = "transient"
	// Fatal means an invariant was violated mid-operation.
	Fatal Kind = "fatal"
)

// Error carries a Kind together with a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf classifies err. Errors that do not carry a Kind are treated as
// transient: they come from the store or the transport.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Transient
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
