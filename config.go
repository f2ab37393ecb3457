package flagscope

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/remote"
	"github.com/caarlos0/env/v11"
)

// Config holds the flag service connection settings shared by scopes and
// the server-side helpers.
type Config struct {
	// ProjectKey and EnvironmentKey identify the flag set. Both are required.
	ProjectKey     string `env:"FLAGS_PROJECT_KEY"`
	EnvironmentKey string `env:"FLAGS_ENVIRONMENT_KEY"`

	// BaseURL is the flag service endpoint.
	BaseURL string `env:"FLAGS_BASE_URL" envDefault:"https://flags-api.basestack.co/v1"`

	// PreloadFlags, when non-empty, makes bulk population fetch exactly
	// these keys one by one instead of listing every flag.
	PreloadFlags []string `env:"FLAGS_PRELOAD" envSeparator:","`

	// Timeout for HTTP requests to the flag service
	Timeout time.Duration `env:"FLAGS_TIMEOUT" envDefault:"5s"`

	// MaxRetries for failed requests
	MaxRetries int `env:"FLAGS_MAX_RETRIES" envDefault:"2"`

	Cache          CacheConfig          `envPrefix:"FLAGS_CACHE_"`
	CircuitBreaker CircuitBreakerConfig `envPrefix:"FLAGS_CIRCUIT_"`
}

// CacheConfig configures the SDK response cache. This cache sits below
// the scope's flag store and is shared by every scope using the same
// client.
type CacheConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"5m"`
	MaxSize int64         `env:"MAX_SIZE" envDefault:"100"`

	// MetricsEnabled records hit/miss counters, read with
	// HTTPClient.CacheMetrics.
	MetricsEnabled bool `env:"METRICS_ENABLED"`
}

// CircuitBreakerConfig configures the SDK circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before opening.
	// Zero disables the breaker.
	Threshold int `env:"THRESHOLD" envDefault:"0"`

	// Timeout is how long to wait before attempting recovery
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the defaults without credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL:    remote.DefaultBaseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
			MaxSize: 100,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// LoadConfigFromEnv reads a Config from FLAGS_* environment variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings needed to reach the flag service.
func (c Config) Validate() error {
	switch {
	case c.ProjectKey == "":
		return &ConfigError{Field: "ProjectKey", Message: "cannot be empty"}
	case c.EnvironmentKey == "":
		return &ConfigError{Field: "EnvironmentKey", Message: "cannot be empty"}
	case c.Timeout < 0:
		return &ConfigError{Field: "Timeout", Message: "cannot be negative"}
	case c.MaxRetries < 0:
		return &ConfigError{Field: "MaxRetries", Message: "cannot be negative"}
	case c.Cache.Enabled && c.Cache.MaxSize < 0:
		return &ConfigError{Field: "Cache.MaxSize", Message: "cannot be negative"}
	}
	for _, key := range c.PreloadFlags {
		if key == "" {
			return &ConfigError{Field: "PreloadFlags", Message: "keys cannot be empty"}
		}
	}
	return nil
}

func (c Config) toRemote(logger *slog.Logger) remote.Config {
	return remote.Config{
		BaseURL:        c.BaseURL,
		ProjectKey:     c.ProjectKey,
		EnvironmentKey: c.EnvironmentKey,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		Cache: remote.CacheConfig{
			Enabled: c.Cache.Enabled,
			TTL:     c.Cache.TTL,
			MaxSize: c.Cache.MaxSize,

			MetricsEnabled: c.Cache.MetricsEnabled,
		},
		Breaker: remote.BreakerConfig{
			MaxFailures: c.CircuitBreaker.Threshold,
			Cooldown:    c.CircuitBreaker.Timeout,
		},
		Logger: logger,
	}
}
