package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies failures returned by the core services.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindConflict        Kind = "conflict"
	KindUnexpected      Kind = "unexpected"
)

// Retryable reports whether the caller may re-issue the operation after a
// fresh read.
func (k Kind) Retryable() bool {
	return k == KindConflict
}

// Error carries a Kind and a human readable message while preserving the
// underlying cause via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func InvalidArgument(message string) *Error {
	return NewError(KindInvalidArgument, message, nil)
}

func NotFound(message string) *Error {
	return NewError(KindNotFound, message, nil)
}

func Unauthorized(message string) *Error {
	return NewError(KindUnauthorized, message, nil)
}

func Conflict(message string, cause error) *Error {
	return NewError(KindConflict, message, cause)
}

func Unexpected(message string, cause error) *Error {
	return NewError(KindUnexpected, message, cause)
}

// KindOf returns the Kind of err. Errors that were never classified are
// unexpected; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Classify returns err as a *Error, wrapping unclassified errors as
// unexpected with the given message.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Unexpected(message, err)
}
