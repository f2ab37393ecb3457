// Package remote is the HTTP client for the flag service: one flag by slug,
// or every flag of a project environment.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/dgraph-io/ristretto"
)

const (
	// DefaultBaseURL is the hosted flag service endpoint.
	DefaultBaseURL = "https://flags-api.basestack.co/v1"

	projectKeyHeader     = "X-Project-Key"
	environmentKeyHeader = "X-Environment-Key"
)

// Fetcher is the capability the rest of the module consumes.
type Fetcher interface {
	GetFlag(ctx context.Context, slug string) (domain.Flag, error)
	GetAllFlags(ctx context.Context) ([]domain.Flag, error)
}

// Config holds the client settings.
type Config struct {
	BaseURL        string
	ProjectKey     string
	EnvironmentKey string
	Timeout        time.Duration
	MaxRetries     int

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration

	Cache   CacheConfig
	Breaker BreakerConfig

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient implements Fetcher over the flag service REST API.
type HTTPClient struct {
	baseURL        string
	projectKey     string
	environmentKey string
	httpClient     *http.Client
	maxRetries     int
	backoff        time.Duration
	cache          *Cache
	breaker        *Breaker
	logger         *slog.Logger
}

// NewHTTPClient creates a client. It fails when the service identity is
// missing or the cache cannot be allocated.
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if config.ProjectKey == "" || config.EnvironmentKey == "" {
		return nil, domain.NewValidationError("project key and environment key are required")
	}
	if config.MaxRetries < 0 {
		return nil, domain.NewValidationError("max retries cannot be negative")
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, domain.NewValidationErrorWithCause("invalid base url", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &HTTPClient{
		baseURL:        baseURL,
		projectKey:     config.ProjectKey,
		environmentKey: config.EnvironmentKey,
		httpClient:     httpClient,
		maxRetries:     config.MaxRetries,
		backoff:        backoff,
		logger:         logger,
	}

	if config.Cache.Enabled {
		cache, err := NewCache(config.Cache)
		if err != nil {
			return nil, fmt.Errorf("create response cache: %w", err)
		}
		c.cache = cache
	}
	if config.Breaker.MaxFailures > 0 {
		c.breaker = NewBreaker(config.Breaker)
	}

	return c, nil
}

// GetFlag fetches one flag. Unknown slugs fail with a NotFoundError.
func (c *HTTPClient) GetFlag(ctx context.Context, slug string) (domain.Flag, error) {
	if slug == "" {
		return domain.Flag{}, domain.NewValidationError("flag slug cannot be empty")
	}
	if flag, ok := c.cache.flag(slug); ok {
		return flag, nil
	}

	var flag domain.Flag
	endpoint := fmt.Sprintf("%s/flags/%s", c.baseURL, url.PathEscape(slug))
	if err := c.doRequest(ctx, endpoint, &flag); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return domain.Flag{}, domain.NewNotFoundError("flag", slug)
		}
		return domain.Flag{}, fmt.Errorf("failed to fetch flag %s: %w", slug, err)
	}
	if flag.Key == "" {
		flag.Key = slug
	}

	c.cache.setFlag(flag)
	return flag, nil
}

type flagsResponse struct {
	Flags []domain.Flag `json:"flags"`
}

// GetAllFlags fetches every flag of the configured environment.
func (c *HTTPClient) GetAllFlags(ctx context.Context) ([]domain.Flag, error) {
	if flags, ok := c.cache.allFlags(); ok {
		return flags, nil
	}

	var resp flagsResponse
	if err := c.doRequest(ctx, c.baseURL+"/flags", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch flags: %w", err)
	}
	if resp.Flags == nil {
		resp.Flags = []domain.Flag{}
	}

	c.cache.setAllFlags(resp.Flags)
	return resp.Flags, nil
}

// Invalidate drops the cached copy of slug and of the full listing.
func (c *HTTPClient) Invalidate(slug string) {
	c.cache.invalidate(slug)
}

// Close releases the response cache.
func (c *HTTPClient) Close() {
	c.cache.Close()
}

// CacheMetrics returns the response cache counters, or nil when the cache
// or its metrics are disabled.
func (c *HTTPClient) CacheMetrics() *ristretto.Metrics {
	return c.cache.Metrics()
}

// BreakerState reports the circuit state, or StateClosed when the breaker is
// disabled.
func (c *HTTPClient) BreakerState() State {
	if c.breaker == nil {
		return StateClosed
	}
	return c.breaker.State()
}

// doRequest performs a GET with retries.
func (c *HTTPClient) doRequest(ctx context.Context, endpoint string, result any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.logger.DebugContext(ctx, "retrying flag request",
				slog.String("url", endpoint),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
		}

		err := c.guarded(ctx, endpoint, result)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return lastErr
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) guarded(ctx context.Context, endpoint string, result any) error {
	if c.breaker == nil {
		return c.doSingleRequest(ctx, endpoint, result)
	}
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	err := c.doSingleRequest(ctx, endpoint, result)
	c.breaker.Record(err != nil && shouldRetry(err))
	return err
}

func (c *HTTPClient) doSingleRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(projectKeyHeader, c.projectKey)
	req.Header.Set(environmentKeyHeader, c.environmentKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// shouldRetry retries 5xx, 429 and transport failures. An open circuit,
// a caller cancellation or a malformed body is final.
func shouldRetry(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	if IsCircuitOpen(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// DecodeError is a 2xx response whose body is not the expected JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to unmarshal response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
