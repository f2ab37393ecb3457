// Package resolver resolves single flags against a store, fetching a
// missing flag at most once per key no matter how many handles ask.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/OrlandoBitencourt/flagscope/internal/store"
	"github.com/OrlandoBitencourt/flagscope/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

// OpGetFlag is the FetchError operation for point fetches.
const OpGetFlag = "get_flag"

// Fetcher fetches one flag.
type Fetcher interface {
	GetFlag(ctx context.Context, key string) (domain.Flag, error)
}

// Populator exposes the bulk populate state. Point fetches wait while a
// populate is running instead of racing it. Err is the last populate
// failure, reported by handles without an error of their own.
type Populator interface {
	Loading() bool
	InFlight() bool
	Wait(ctx context.Context) error
	Err() error
}

// Config configures a Resolver.
type Config struct {
	Fetcher   Fetcher
	Store     *store.Store
	Populator Populator
	Logger    *slog.Logger
	Telemetry telemetry.Provider
}

// Resolver creates handles and deduplicates their point fetches.
type Resolver struct {
	fetcher   Fetcher
	store     *store.Store
	populator Populator
	logger    *slog.Logger
	telemetry telemetry.Provider

	group singleflight.Group
}

// New creates a resolver.
func New(config Config) (*Resolver, error) {
	if config.Fetcher == nil {
		return nil, domain.NewValidationError("resolver requires a fetcher")
	}
	if config.Store == nil {
		return nil, domain.NewValidationError("resolver requires a store")
	}

	populator := config.Populator
	if populator == nil {
		populator = idle{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tel := config.Telemetry
	if tel == nil {
		tel = telemetry.NewNoOp()
	}

	return &Resolver{
		fetcher:   config.Fetcher,
		store:     config.Store,
		populator: populator,
		logger:    logger,
		telemetry: tel,
	}, nil
}

// Resolve returns a handle for key. An empty key fails immediately.
func (r *Resolver) Resolve(key string, opts ...Option) (*Handle, error) {
	if key == "" {
		return nil, domain.NewValidationError("flag key cannot be empty")
	}

	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Handle{r: r, key: key, opts: options}, nil
}

// fetch joins or starts the shared point fetch for key. The fetch runs
// detached from ctx; a successful result is upserted exactly once.
func (r *Resolver) fetch(ctx context.Context, key string) <-chan singleflight.Result {
	runCtx := context.WithoutCancel(ctx)
	return r.group.DoChan(key, func() (any, error) {
		start := time.Now()
		ctx, span := r.telemetry.StartSpan(runCtx, "flagscope.point_fetch", telemetry.String("flag.key", key))
		defer span.End()

		flag, err := r.fetcher.GetFlag(ctx, key)
		r.telemetry.RecordPointFetch(ctx, key, err == nil, time.Since(start))
		if err != nil {
			span.RecordError(err)
			r.logger.DebugContext(ctx, "flag fetch failed",
				slog.String("flag", key),
				slog.Any("error", err))
			return domain.Flag{}, domain.NewFetchError(OpGetFlag, key, err)
		}

		if flag.Key == "" {
			flag.Key = key
		}
		r.store.UpsertOne(flag)
		return flag, nil
	})
}

type idle struct{}

func (idle) Loading() bool { return false }
func (idle) InFlight() bool { return false }
func (idle) Wait(ctx context.Context) error { return nil }
func (idle) Err() error { return nil }
