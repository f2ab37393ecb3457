// Package coordinator owns bulk population of a flag store: the initial
// automatic populate and every explicit refresh. Concurrent requests share
// one in-flight operation.
package coordinator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/OrlandoBitencourt/flagscope/internal/store"
	"github.com/OrlandoBitencourt/flagscope/internal/telemetry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetch operation names carried by FetchError.
const (
	OpGetFlag     = "get_flag"
	OpGetAllFlags = "get_all_flags"
)

// Fetcher is the remote capability the coordinator populates from.
type Fetcher interface {
	GetFlag(ctx context.Context, key string) (domain.Flag, error)
	GetAllFlags(ctx context.Context) ([]domain.Flag, error)
}

// Config configures a Coordinator.
type Config struct {
	Fetcher Fetcher
	Store   *store.Store

	// PreloadKeys switches populate from fetch-all to one point fetch per
	// key.
	PreloadKeys []string

	// Preload enables the automatic populate run by Start.
	Preload bool

	// HasInitial marks the store as seeded with a non-empty snapshot,
	// which suppresses the automatic populate.
	HasInitial bool

	OnError   func(error)
	Filter    *Filter
	Logger    *slog.Logger
	Telemetry telemetry.Provider
	Now       func() time.Time
}

// State is the coordinator-level fetch state.
type State struct {
	Loading bool
	Err     error
}

// Coordinator runs populates against a store.
type Coordinator struct {
	fetcher     Fetcher
	store       *store.Store
	preloadKeys []string
	preload     bool
	onError     func(error)
	filter      *Filter
	logger      *slog.Logger
	telemetry   telemetry.Provider
	now         func() time.Time

	group     singleflight.Group
	startOnce sync.Once

	mu         sync.Mutex
	loading    bool
	err        error
	hasInitial bool
	closed     bool
	generation uint64
	inflight   chan struct{}
}

// New creates a coordinator. Until Start runs, Loading reports true when an
// automatic populate is pending.
func New(config Config) (*Coordinator, error) {
	if config.Fetcher == nil {
		return nil, domain.NewValidationError("coordinator requires a fetcher")
	}
	if config.Store == nil {
		return nil, domain.NewValidationError("coordinator requires a store")
	}
	for _, key := range config.PreloadKeys {
		if key == "" {
			return nil, domain.NewValidationError("preload keys cannot be empty")
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tel := config.Telemetry
	if tel == nil {
		tel = telemetry.NewNoOp()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		fetcher:     config.Fetcher,
		store:       config.Store,
		preloadKeys: append([]string(nil), config.PreloadKeys...),
		preload:     config.Preload,
		onError:     config.OnError,
		filter:      config.Filter,
		logger:      logger,
		telemetry:   tel,
		now:         now,
		hasInitial:  config.HasInitial,
		loading:     config.Preload && !config.HasInitial,
	}, nil
}

// Start runs the automatic populate in the background, at most once per
// coordinator. It is skipped when preload is off or the store was seeded.
// Failures are recorded in State and forwarded to OnError, never returned.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.mu.Lock()
		skip := !c.preload || c.hasInitial || c.closed
		if skip && c.inflight == nil {
			c.loading = false
		}
		c.mu.Unlock()
		if skip {
			return
		}

		c.logger.DebugContext(ctx, "starting initial flag populate")
		c.begin(ctx)
	})
}

// Refresh populates the store now. Concurrent callers share one in-flight
// populate and all observe its result. If ctx ends first Refresh returns
// ctx.Err(); the populate keeps running and still settles the state.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ch := c.begin(ctx)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin joins the current flight or starts a new one. Each flight has its
// own singleflight key, so a caller arriving after a flight settled never
// joins it.
func (c *Coordinator) begin(ctx context.Context) <-chan singleflight.Result {
	c.mu.Lock()
	if c.inflight == nil {
		c.generation++
		c.inflight = make(chan struct{})
		if !c.closed {
			c.loading = true
			c.err = nil
		}
	}
	gen := c.generation
	runCtx := context.WithoutCancel(ctx)

	// DoChan runs under c.mu: the flight for gen cannot settle before
	// this caller joins it.
	ch := c.group.DoChan(flightKey(gen), func() (any, error) {
		return nil, c.run(runCtx, gen)
	})
	c.mu.Unlock()
	return ch
}

func flightKey(gen uint64) string {
	return "populate:" + strconv.FormatUint(gen, 10)
}

func (c *Coordinator) run(ctx context.Context, gen uint64) error {
	mode := telemetry.ModeAll
	if len(c.preloadKeys) > 0 {
		mode = telemetry.ModePreload
	}

	start := c.now()
	ctx, span := c.telemetry.StartSpan(ctx, "flagscope.populate", telemetry.String("mode", mode))
	defer span.End()

	flags, err := c.fetch(ctx)
	if err == nil {
		flags, err = c.filter.Apply(flags, c.now())
	}
	c.telemetry.RecordPopulate(ctx, mode, err == nil, c.now().Sub(start), len(flags))

	if err == nil {
		c.store.UpsertMany(flags)
		span.SetAttributes(telemetry.Int("flag.count", len(flags)))
	} else {
		span.RecordError(err)
	}

	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.err = err
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "flag populate failed",
			slog.String("mode", mode),
			slog.Any("error", err))
		if c.onError != nil {
			c.onError(err)
		}
	} else if !closed {
		c.logger.DebugContext(ctx, "flag populate complete",
			slog.String("mode", mode),
			slog.Int("count", len(flags)))
	}

	c.mu.Lock()
	if !c.closed {
		c.loading = false
	}
	if c.generation == gen && c.inflight != nil {
		close(c.inflight)
		c.inflight = nil
	}
	c.mu.Unlock()

	return err
}

// fetch returns the populate batch. With preload keys every key is fetched
// concurrently and any single failure fails the whole batch.
func (c *Coordinator) fetch(ctx context.Context) ([]domain.Flag, error) {
	if len(c.preloadKeys) == 0 {
		flags, err := c.fetcher.GetAllFlags(ctx)
		if err != nil {
			return nil, domain.NewFetchError(OpGetAllFlags, "", err)
		}
		return flags, nil
	}

	results := make([]domain.Flag, len(c.preloadKeys))
	var g errgroup.Group
	for i, key := range c.preloadKeys {
		g.Go(func() error {
			flag, err := c.fetcher.GetFlag(ctx, key)
			if err != nil {
				return domain.NewFetchError(OpGetFlag, key, err)
			}
			results[i] = flag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SetInitial applies a snapshot supplied after construction. A non-empty
// list replaces the store wholesale and clears the loading state; an empty
// list is ignored.
func (c *Coordinator) SetInitial(flags []domain.Flag) {
	if len(flags) == 0 {
		return
	}
	c.store.Replace(flags)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasInitial = true
	if !c.closed {
		c.loading = false
	}
}

// State returns the current loading/error state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Loading: c.loading, Err: c.err}
}

// Loading reports whether a populate is pending or running.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last populate failure, nil after a success.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// InFlight reports whether a populate is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Wait blocks until the running populate, if any, settles.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.inflight
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close freezes the state. A populate still in flight completes but its
// result no longer changes State.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
