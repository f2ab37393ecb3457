package flagscope

import (
	"fmt"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// Error types that may be returned by flagscope operations.
type (
	// ValidationError is a caller contract violation, such as an empty
	// flag key. It is returned synchronously and never reaches the
	// network.
	ValidationError = domain.ValidationError

	// FetchError is a failure reported by the flag service.
	FetchError = domain.FetchError

	// NotFoundError is returned by the SDK for an unknown flag key.
	NotFoundError = domain.NotFoundError
)

// ErrMissingScope is returned by the context entry points when no scope
// is attached to the context.
var ErrMissingScope = domain.ErrMissingScope

// ErrScopeClosed is returned by operations on a closed scope.
var ErrScopeClosed = domain.ErrScopeClosed

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool { return domain.IsValidationError(err) }

// IsFetchError reports whether err is a FetchError.
func IsFetchError(err error) bool { return domain.IsFetchError(err) }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return domain.IsNotFound(err) }

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

// Unwrap exposes the failure as a ValidationError.
func (e *ConfigError) Unwrap() error {
	return domain.NewValidationError(e.Field + " " + e.Message)
}
