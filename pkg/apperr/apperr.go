package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller-facing policy in the analysis path:
// input, timeout and permanent storage errors surface; everything else degrades.
type Kind string

const (
	KindInput            Kind = "input"
	KindStorage          Kind = "storage"
	KindUpstream         Kind = "upstream"
	KindModelUnavailable Kind = "model_unavailable"
	KindTimeout          Kind = "timeout"
)

// Error is a structured error carrying a kind and a human-readable message.
type Error struct {
	Kind      Kind
	Message   string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a structured error with the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Input creates an input validation error.
func Input(format string, args ...interface{}) *Error {
	return New(KindInput, format, args...)
}

// Storage wraps a storage error. Transient errors are eligible for retry.
func Storage(err error, transient bool, format string, args ...interface{}) *Error {
	e := Wrap(KindStorage, err, format, args...)
	e.Transient = transient
	return e
}

// Upstream wraps an upstream API error.
func Upstream(err error, format string, args ...interface{}) *Error {
	return Wrap(KindUpstream, err, format, args...)
}

// Timeout wraps a deadline-exceeded error.
func Timeout(err error, format string, args ...interface{}) *Error {
	return Wrap(KindTimeout, err, format, args...)
}

// KindOf returns the kind of err, or empty if err is not a structured error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransient reports whether err is a retryable storage error.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}
