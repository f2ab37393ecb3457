package flagscope

import (
	"context"
	"log/slog"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/OrlandoBitencourt/flagscope/internal/remote"
	"golang.org/x/sync/errgroup"
)

const (
	opFetchFlag  = "fetch_flag"
	opFetchFlags = "fetch_flags"
)

// HTTPClient talks to the flag service over HTTP. It caches responses,
// retries transient failures and optionally trips a circuit breaker.
type HTTPClient = remote.HTTPClient

// NewServerClient validates cfg and builds an HTTP client. Callers own the
// client and should Close it.
func NewServerClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return remote.NewHTTPClient(cfg.toRemote(slog.Default()))
}

// FetchFlag fetches a single flag outside any scope, typically during a
// server render. An empty key fails before a client is built.
func FetchFlag(ctx context.Context, key string, cfg Config) (Flag, error) {
	if key == "" {
		return Flag{}, domain.NewValidationError("fetchFlag requires a flag slug")
	}

	client, err := NewServerClient(cfg)
	if err != nil {
		return Flag{}, err
	}
	defer client.Close()

	flag, err := client.GetFlag(ctx, key)
	if err != nil {
		return Flag{}, domain.NewFetchError(opFetchFlag, key, err)
	}
	return flag, nil
}

// FetchFlags fetches flags outside any scope. With keys it fetches exactly
// those, concurrently, and returns them in the order given; any failure
// fails the call. Without keys it lists every flag.
//
// The result is ready to pass to WithInitialFlags and HydrationScript.
func FetchFlags(ctx context.Context, cfg Config, keys ...string) ([]Flag, error) {
	for _, key := range keys {
		if key == "" {
			return nil, domain.NewValidationError("fetchFlags requires non-empty flag slugs")
		}
	}

	client, err := NewServerClient(cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if len(keys) == 0 {
		flags, err := client.GetAllFlags(ctx)
		if err != nil {
			return nil, domain.NewFetchError(opFetchFlags, "", err)
		}
		return flags, nil
	}

	flags := make([]Flag, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			flag, err := client.GetFlag(gctx, key)
			if err != nil {
				return domain.NewFetchError(opFetchFlag, key, err)
			}
			flags[i] = flag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flags, nil
}
