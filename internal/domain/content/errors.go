package content

import (
	"errors"
	"fmt"
)

// ErrorType classifies content retrieval failures.
type ErrorType string

const (
	// TypeNotFound means the requested slug or ID does not exist. Not retryable.
	TypeNotFound ErrorType = "NOT_FOUND"
	// TypeBackend means the content backend failed. Retryable.
	TypeBackend ErrorType = "BACKEND"
)

// Error is a typed content error carrying a user-presentable message.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the operation.
func (e *Error) Retryable() bool { return e.Type == TypeBackend }

// NewNotFound builds a NOT_FOUND error for a missing slug or ID.
func NewNotFound(what, key string) *Error {
	return &Error{Type: TypeNotFound, Message: fmt.Sprintf("%s %q not found", what, key)}
}

// NewBackend wraps a backend failure.
func NewBackend(op string, err error) *Error {
	return &Error{Type: TypeBackend, Message: "conteúdo temporariamente indisponível (" + op + ")", Err: err}
}

// IsNotFound reports whether err is a NOT_FOUND content error.
func IsNotFound(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == TypeNotFound
	}
	return false
}
