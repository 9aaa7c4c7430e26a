// Package errs carries the coded errors shared by the note service and its
// transports. A code decides the HTTP status; the message is what clients see.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is an application error code.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	NotFound          Code = "not_found"
	ResourceExhausted Code = "resource_exhausted"
	Unavailable       Code = "unavailable"
	Internal          Code = "internal"
)

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	var coded *Error
	if err != nil && errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns a user-facing error message.
// Uncoded errors become "internal error" so file paths and OS errors from the
// log file never reach a response body.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// HTTPStatus maps error code to HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case ResourceExhausted:
		return http.StatusTooManyRequests
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
