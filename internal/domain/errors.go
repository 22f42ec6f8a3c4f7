package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("login required")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("not found")
	ErrEmptySelection  = errors.New("no items selected for checkout")
	ErrRemoteFailure   = errors.New("remote service failure")
)

// ValidationError reports an empty or invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RemoteFailure wraps a network or storage error. It matches ErrRemoteFailure
// as well as the underlying cause.
type RemoteFailure struct {
	Op  string
	Err error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteFailure) Unwrap() []error {
	return []error{ErrRemoteFailure, e.Err}
}

func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteFailure{Op: op, Err: err}
}
