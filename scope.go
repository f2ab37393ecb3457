// Package flagscope resolves feature flags for everything running inside
// one scope: a request, a rendered page, or a long-lived client session.
//
// A scope keeps one in-memory flag store shared by all its consumers,
// populates it once from the flag service, fetches missing flags lazily
// and at most once per key, and carries a server-rendered snapshot over to
// the client through an inline hydration script.
//
// Example:
//
//	scope, err := flagscope.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//	scope.Start(ctx)
//
//	beta, _ := scope.Flag("beta", flagscope.WithFallbackEnabled(false))
//	res, _ := beta.Await(ctx)
//	if res.Enabled {
//	    // ...
//	}
package flagscope

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/OrlandoBitencourt/flagscope/internal/coordinator"
	"github.com/OrlandoBitencourt/flagscope/internal/remote"
	"github.com/OrlandoBitencourt/flagscope/internal/resolver"
	"github.com/OrlandoBitencourt/flagscope/internal/store"
	"github.com/OrlandoBitencourt/flagscope/internal/telemetry"
	"github.com/google/uuid"
)

// Scope owns the flag store of one consumer tree.
type Scope struct {
	id          string
	client      Fetcher
	owned       *remote.HTTPClient
	store       *store.Store
	coordinator *coordinator.Coordinator
	resolver    *resolver.Resolver
	logger      *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a scope. Unless WithFetcher is given, an HTTP client is
// built from cfg, which must then carry the service credentials.
//
// New does no I/O. The automatic populate starts with Start, or with the
// first Flag or Flags call.
func New(cfg Config, opts ...Option) (*Scope, error) {
	sc := defaultScopeConfig()
	for _, opt := range opts {
		if err := opt(sc); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	logger := sc.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("scope_id", id))

	tel := sc.telemetry
	if tel == nil {
		tel = telemetry.NewNoOp()
	}

	s := &Scope{id: id, logger: logger}

	if sc.fetcher != nil {
		s.client = sc.fetcher
	} else {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		client, err := remote.NewHTTPClient(cfg.toRemote(logger))
		if err != nil {
			return nil, err
		}
		s.client = client
		s.owned = client
	}

	initial := sc.initialFlags
	if len(initial) == 0 && sc.hydration != nil {
		if flags, ok := sc.hydration.Read(); ok {
			initial = flags
		}
	}
	s.store = store.New(initial)

	coord, err := coordinator.New(coordinator.Config{
		Fetcher:     s.client,
		Store:       s.store,
		PreloadKeys: cfg.PreloadFlags,
		Preload:     sc.preload,
		HasInitial:  s.store.Snapshot().Len() > 0,
		OnError:     sc.onError,
		Filter:      sc.filter,
		Logger:      logger,
		Telemetry:   tel,
	})
	if err != nil {
		s.release()
		return nil, err
	}
	s.coordinator = coord

	res, err := resolver.New(resolver.Config{
		Fetcher:   s.client,
		Store:     s.store,
		Populator: coord,
		Logger:    logger,
		Telemetry: tel,
	})
	if err != nil {
		s.release()
		return nil, err
	}
	s.resolver = res

	logger.Debug("flag scope created",
		slog.Int("initial_flags", s.store.Snapshot().Len()),
		slog.Bool("preload", sc.preload))

	return s, nil
}

// ID returns the scope's unique id.
func (s *Scope) ID() string {
	return s.id
}

// Start runs the automatic populate in the background, once per scope.
// It is a no-op when preload is disabled or the scope was seeded with
// initial flags. Failures land in State().Err and the OnError callback.
func (s *Scope) Start(ctx context.Context) {
	if s.closed.Load() {
		return
	}
	s.coordinator.Start(ctx)
}

// Wait blocks until the running populate, if any, settles.
func (s *Scope) Wait(ctx context.Context) error {
	return s.coordinator.Wait(ctx)
}

// Close stops state updates. Fetches in flight complete but their results
// are dropped. Close is idempotent.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.coordinator.Close()
		s.store.Close()
		s.release()
		s.logger.Debug("flag scope closed")
	})
	return nil
}

func (s *Scope) release() {
	if s.owned != nil {
		s.owned.Close()
	}
}

// State returns the client, a copy of the flags and the populate state.
func (s *Scope) State() State {
	st := s.coordinator.State()
	return State{
		Client:  s.client,
		Flags:   s.store.Snapshot().Map(),
		Loading: st.Loading,
		Err:     st.Err,
	}
}

// Snapshot returns the current flags.
func (s *Scope) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// Subscribe delivers the latest snapshot after every store change. The
// channel closes when cancel is called or the scope closes.
func (s *Scope) Subscribe() (<-chan Snapshot, func()) {
	return s.store.Subscribe()
}

// Refresh populates the scope from the flag service. Concurrent calls
// share one fetch. The error is also recorded in State and passed to the
// OnError callback. If ctx ends first Refresh returns ctx.Err() while the
// fetch completes in the background.
func (s *Scope) Refresh(ctx context.Context) error {
	if s.closed.Load() {
		return ErrScopeClosed
	}
	return s.coordinator.Refresh(ctx)
}

// SetInitialFlags applies a snapshot that arrived after construction,
// replacing the store. Empty lists are ignored.
func (s *Scope) SetInitialFlags(flags []Flag) {
	s.coordinator.SetInitial(flags)
}

// UpsertFlag writes one flag into the store.
func (s *Scope) UpsertFlag(flag Flag) error {
	if err := flag.Validate(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrScopeClosed
	}
	s.store.UpsertOne(flag)
	return nil
}

// Client returns the flag service client.
func (s *Scope) Client() Fetcher {
	return s.client
}

// Flag returns a handle resolving key. An empty key fails with a
// ValidationError before any fetch.
func (s *Scope) Flag(key string, opts ...FlagOption) (*FlagHandle, error) {
	h, err := s.resolver.Resolve(key, opts...)
	if err != nil {
		return nil, err
	}
	s.Start(context.Background())
	return &FlagHandle{h: h}, nil
}

// Flags returns every flag in the scope with the populate state.
func (s *Scope) Flags() Collection {
	s.Start(context.Background())

	snap := s.store.Snapshot()
	st := s.coordinator.State()
	return Collection{
		Flags:       snap.Flags(),
		FlagsBySlug: snap.Map(),
		IsLoading:   st.Loading,
		Err:         st.Err,
		Refresh:     s.Refresh,
	}
}

// FlagHandle resolves one flag for one consumer.
type FlagHandle struct {
	h *resolver.Handle
}

// Key returns the key being resolved.
func (f *FlagHandle) Key() string {
	return f.h.Key()
}

// View returns the current result without blocking. A missing flag is
// fetched in the background, at most once per handle and key.
func (f *FlagHandle) View() Result {
	return f.h.View()
}

// Await blocks until the flag settles or ctx ends.
func (f *FlagHandle) Await(ctx context.Context) (Result, error) {
	return f.h.Await(ctx)
}

// Refresh re-fetches the flag and stores it. The error is recorded on the
// handle and returned.
func (f *FlagHandle) Refresh(ctx context.Context) (Flag, error) {
	return f.h.Refresh(ctx)
}

// SetKey points the handle at another flag.
func (f *FlagHandle) SetKey(key string) error {
	return f.h.SetKey(key)
}
