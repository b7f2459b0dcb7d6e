// Package apperr carries business-rule failures from services to
// handlers with a stable reason code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable failure reason returned to callers.
type Code string

const (
	InvalidArgument    Code = "invalid-argument"
	FailedPrecondition Code = "failed-precondition"
	AlreadyExists      Code = "already-exists"
	PermissionDenied   Code = "permission-denied"
	NotFound           Code = "not-found"
	ResourceExhausted  Code = "resource-exhausted"
	Unauthenticated    Code = "unauthenticated"
	Internal           Code = "internal"
)

// Error is an expected failure. Message is safe to show to the caller;
// Err (optional) is the underlying cause and is only logged.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, Internal
// for any other non-nil error, and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage returns the message to show the caller. Errors without
// a code never leak their text.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != Internal {
		return ae.Message
	}
	return "An internal error occurred."
}

// HTTPStatus maps a code to an HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument:
		return http.StatusBadRequest
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case AlreadyExists:
		return http.StatusConflict
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
