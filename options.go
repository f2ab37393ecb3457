package flagscope

import (
	"errors"
	"log/slog"

	"github.com/OrlandoBitencourt/flagscope/internal/coordinator"
	"github.com/OrlandoBitencourt/flagscope/internal/telemetry"
)

// Option configures a Scope.
type Option func(*scopeConfig) error

// scopeConfig holds internal configuration.
type scopeConfig struct {
	initialFlags []Flag
	preload      bool
	onError      func(error)
	fetcher      Fetcher
	logger       *slog.Logger
	telemetry    telemetry.Provider
	filter       *coordinator.Filter
	hydration    *HydrationReader
}

func defaultScopeConfig() *scopeConfig {
	return &scopeConfig{preload: true}
}

// TelemetryProvider receives populate, point fetch and lookup telemetry.
type TelemetryProvider = telemetry.Provider

// WithInitialFlags seeds the scope, typically with flags fetched during a
// server render. A non-empty list suppresses the automatic populate.
func WithInitialFlags(flags []Flag) Option {
	return func(c *scopeConfig) error {
		c.initialFlags = append([]Flag(nil), flags...)
		return nil
	}
}

// WithHydration seeds the scope from hydration data written by
// HydrationScript, if present. Explicit WithInitialFlags take precedence.
func WithHydration(reader *HydrationReader) Option {
	return func(c *scopeConfig) error {
		if reader == nil {
			return errors.New("hydration reader cannot be nil")
		}
		c.hydration = reader
		return nil
	}
}

// WithPreload toggles the automatic populate when the scope starts.
// Default: true
func WithPreload(preload bool) Option {
	return func(c *scopeConfig) error {
		c.preload = preload
		return nil
	}
}

// WithOnError registers a callback invoked once per failed populate,
// including the automatic one.
func WithOnError(fn func(error)) Option {
	return func(c *scopeConfig) error {
		c.onError = fn
		return nil
	}
}

// WithFetcher replaces the HTTP client built from Config. The Config
// credentials are then not required.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *scopeConfig) error {
		if fetcher == nil {
			return errors.New("fetcher cannot be nil")
		}
		c.fetcher = fetcher
		return nil
	}
}

// WithLogger sets the structured logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *scopeConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(provider TelemetryProvider) Option {
	return func(c *scopeConfig) error {
		if provider == nil {
			return errors.New("telemetry provider cannot be nil")
		}
		c.telemetry = provider
		return nil
	}
}

// WithOTel records telemetry through the global OpenTelemetry providers.
func WithOTel() Option {
	return func(c *scopeConfig) error {
		provider, err := telemetry.NewOTel()
		if err != nil {
			return err
		}
		c.telemetry = provider
		return nil
	}
}

// WithFilter admits only the bulk populate results matching expression.
// Point fetches are never filtered.
//
// Variables: key, enabled, payload, description, expired, createdAt,
// updatedAt, now.
//
// Example: flagscope.WithFilter("enabled && !expired")
func WithFilter(expression string) Option {
	return func(c *scopeConfig) error {
		filter, err := coordinator.CompileFilter(expression)
		if err != nil {
			return err
		}
		c.filter = filter
		return nil
	}
}
