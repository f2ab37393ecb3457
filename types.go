package flagscope

import (
	"context"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/OrlandoBitencourt/flagscope/internal/resolver"
	"github.com/OrlandoBitencourt/flagscope/internal/store"
)

// Flag is a feature flag record. Key is serialized as "slug".
type Flag = domain.Flag

// Fetcher is the flag service capability a scope populates from.
// NewServerClient returns the HTTP implementation.
type Fetcher interface {
	GetFlag(ctx context.Context, key string) (Flag, error)
	GetAllFlags(ctx context.Context) ([]Flag, error)
}

// Snapshot is an immutable, insertion-ordered view of a scope's flags.
type Snapshot = store.Snapshot

// State is the scope-level view.
type State struct {
	Client  Fetcher
	Flags   map[string]Flag
	Loading bool
	Err     error
}

// Result is the derived view of a single flag.
//
// Enabled and Payload fall back to the handle's fallbacks while the flag
// is not cached. IsLoading is true while a populate or point fetch is
// pending, or while a missing flag has not been requested yet. Err is the
// handle's own fetch error, or else the scope's last populate error.
type Result = resolver.Result

// Collection is the view of every flag in a scope.
type Collection struct {
	Flags       []Flag
	FlagsBySlug map[string]Flag
	IsLoading   bool
	Err         error

	// Refresh re-populates the scope.
	Refresh func(ctx context.Context) error
}

// FlagOption configures single-flag resolution.
type FlagOption = resolver.Option

// WithRequireFetch controls whether a missing flag is fetched.
// Default: true
func WithRequireFetch(require bool) FlagOption {
	return resolver.WithRequireFetch(require)
}

// WithFallbackEnabled sets the enabled value reported until the flag
// resolves. Default: false
func WithFallbackEnabled(enabled bool) FlagOption {
	return resolver.WithFallbackEnabled(enabled)
}

// WithFallbackPayload sets the payload reported until the flag resolves,
// and for resolved flags without a payload.
func WithFallbackPayload(payload any) FlagOption {
	return resolver.WithFallbackPayload(payload)
}

// DecodePayload converts a flag payload into T.
//
// Example:
//
//	type banner struct{ Text string `json:"text"` }
//	b, err := flagscope.DecodePayload[banner](res.Payload)
func DecodePayload[T any](payload any) (T, error) {
	return domain.DecodePayload[T](payload)
}
