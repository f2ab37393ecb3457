package domain

import (
	"errors"
	"fmt"
)

// -----------------------------
// ValidationError
// -----------------------------

// ValidationError is a caller-contract violation. It is raised before any
// network work happens.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

func NewValidationErrorWithCause(message string, cause error) *ValidationError {
	return &ValidationError{
		Message: message,
		Cause:   cause,
	}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// -----------------------------
// NotFoundError
// -----------------------------

type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// -----------------------------
// FetchError
// -----------------------------

// FetchError wraps a failure reported by the remote flag service.
// Op is "populate", "get_flag" or "get_all_flags".
type FetchError struct {
	Op  string
	Key string
	Err error
}

func NewFetchError(op, key string, err error) *FetchError {
	return &FetchError{Op: op, Key: key, Err: err}
}

func (e *FetchError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("fetch %s failed for flag %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

// -----------------------------
// Scope errors
// -----------------------------

// ErrMissingScope is returned by resolution entry points called outside
// any scope.
var ErrMissingScope = errors.New("flag scope is missing from the context")

// ErrScopeClosed is returned when work is requested on a closed scope.
var ErrScopeClosed = errors.New("flag scope is closed")
