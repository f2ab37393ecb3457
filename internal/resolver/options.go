package resolver

// Options controls how a handle resolves a missing flag.
type Options struct {
	// RequireFetch triggers a point fetch when the flag is not cached.
	RequireFetch bool

	// FallbackEnabled is reported while the flag is not cached.
	FallbackEnabled bool

	// FallbackPayload is reported while the flag is not cached or carries
	// no payload.
	FallbackPayload any
}

// Option configures Options.
type Option func(*Options)

// DefaultOptions fetches missing flags and falls back to disabled.
func DefaultOptions() Options {
	return Options{RequireFetch: true}
}

// WithRequireFetch toggles the point fetch for missing flags.
func WithRequireFetch(require bool) Option {
	return func(o *Options) { o.RequireFetch = require }
}

// WithFallbackEnabled sets the enabled value used until the flag resolves.
func WithFallbackEnabled(enabled bool) Option {
	return func(o *Options) { o.FallbackEnabled = enabled }
}

// WithFallbackPayload sets the payload used until the flag resolves.
func WithFallbackPayload(payload any) Option {
	return func(o *Options) { o.FallbackPayload = payload }
}
