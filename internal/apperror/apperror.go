package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindBadRequest      Kind = "BAD_REQUEST"
	KindValidation      Kind = "VALIDATION"
	KindConflict        Kind = "CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// FieldError is one malformed input field, path plus human readable message.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the closed domain failure variant. Every failure the services
// return is one of these; the transport boundary performs a single exhaustive
// mapping to HTTP status codes.
type Error struct {
	Kind    Kind         `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"validationErrors,omitempty"`
	Cause   error        `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return New(KindForbidden, msg) }
func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func BadRequest(msg string) *Error      { return New(KindBadRequest, msg) }
func Conflict(msg string) *Error        { return New(KindConflict, msg) }
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal server error", cause)
}

func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "please check your request values", Fields: fields}
}

// KindOf extracts the failure kind from any error. Unknown errors are
// classified as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From returns err as *Error, wrapping unknown errors as internal so the
// transport never leaks raw error strings to callers.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
