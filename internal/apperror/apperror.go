// Package apperror defines the operational error type used across the API.
// An operational error is an anticipated failure that carries an HTTP status
// code and a message that is safe to show to clients.  Any error that is not
// an *Error is treated as unexpected by the error handler and collapsed into
// a generic 500 response outside development mode.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Kind classifies an operational error.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindCast            Kind = "cast"
	KindDuplicate       Kind = "duplicate"
	KindBadRequest      Kind = "bad_request"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Error is an operational error.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
	Stack   string // set for 5xx errors only
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// StatusText returns "fail" for client errors and "error" for server errors.
func (e *Error) StatusText() string {
	return StatusText(e.Status)
}

// StatusText maps an HTTP status code to the envelope status string.
func StatusText(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}

// newError records the call stack for server errors only; client errors are
// frequent and their origin is clear from the message.
func newError(kind Kind, status int, msg string, err error) *Error {
	e := &Error{Kind: kind, Status: status, Message: msg, Err: err}
	if status >= http.StatusInternalServerError {
		e.Stack = string(debug.Stack())
	}
	return e
}

// New creates an operational error for an arbitrary status code.
func New(status int, msg string) *Error {
	return newError(kindFor(status), status, msg, nil)
}

// Wrap creates an operational error that keeps the underlying cause.
func Wrap(err error, status int, msg string) *Error {
	return newError(kindFor(status), status, msg, err)
}

func Validation(msg string) *Error { return newError(KindValidation, http.StatusBadRequest, msg, nil) }

// Cast reports a malformed identifier or typed value, e.g. an id that is not a UUID.
func Cast(path, value string) *Error {
	return newError(KindCast, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", path, value), nil)
}

func Duplicate(value string) *Error {
	return newError(KindDuplicate, http.StatusBadRequest, fmt.Sprintf("Duplicate field value entered: %s", value), nil)
}

func BadRequest(msg string) *Error { return newError(KindBadRequest, http.StatusBadRequest, msg, nil) }

func Unauthenticated(msg string) *Error {
	return newError(KindUnauthenticated, http.StatusUnauthorized, msg, nil)
}

func Forbidden(msg string) *Error { return newError(KindForbidden, http.StatusForbidden, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, http.StatusNotFound, msg, nil) }

func Internal(msg string, err error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, msg, err)
}

// As reports whether err is (or wraps) an operational error and returns it.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind checks if an error has the provided kind (through unwrapping).
func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func kindFor(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	}
	if status >= 500 {
		return KindInternal
	}
	return KindBadRequest
}
