package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindInvalid
	KindInvalidState
	KindResourceExhausted
)

// Error is a typed application error raised by the core services.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a typed error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates a typed error wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// NotFound creates a not-found error.
func NotFound(msg string) *Error { return E(KindNotFound, msg) }

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error { return E(KindForbidden, msg) }

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error { return E(KindUnauthorized, msg) }

// Invalid creates a bad-input error.
func Invalid(msg string) *Error { return E(KindInvalid, msg) }

// InvalidState creates an error for operations against a resource not in
// the expected state (answering a completed assignment, reusing a token).
func InvalidState(msg string) *Error { return E(KindInvalidState, msg) }

// ResourceExhausted creates an error for exhausted retry attempts or an
// empty question pool after recovery.
func ResourceExhausted(msg string) *Error { return E(KindResourceExhausted, msg) }

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalid, KindInvalidState:
		return http.StatusBadRequest
	case KindResourceExhausted:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
