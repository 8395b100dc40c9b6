package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a failed operation so that transports can map it to a status.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindLimitExceeded    Kind = "limit_exceeded"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidOperation Kind = "invalid_operation"
	KindUnauthorized     Kind = "unauthorized"
)

// Sentinels usable with errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden        = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict         = &Error{Kind: KindConflict, Message: "conflict"}
	ErrLimitExceeded    = &Error{Kind: KindLimitExceeded, Message: "limit exceeded"}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation, Message: "invalid operation"}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
)

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func conflict(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

func invalidInput(format string, args ...interface{}) error {
	return newError(KindInvalidInput, format, args...)
}

func invalidOperation(format string, args ...interface{}) error {
	return newError(KindInvalidOperation, format, args...)
}

// KindOf returns the kind carried by err, or "" for untyped (internal) errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// lookupErr turns a missing record into a NotFound error and wraps anything
// else as an internal failure.
func lookupErr(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("%s %v not found", what, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, id, err)
}
