package resolver

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Result is the derived view of one flag.
type Result struct {
	Key       string
	Flag      *domain.Flag
	Enabled   bool
	Payload   any
	IsLoading bool
	Err       error
}

// Handle tracks the resolution of one key for one consumer. It remembers
// whether it already requested a fetch so that repeated reads of a missing
// key trigger at most one fetch.
type Handle struct {
	r    *Resolver
	opts Options

	mu        sync.Mutex
	key       string
	gen       uint64
	requested bool
	waiting   bool
	pending   chan struct{}
	err       error
}

// Key returns the key the handle currently resolves.
func (h *Handle) Key() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.key
}

// SetKey points the handle at another key. Changing the key resets the
// requested marker and the local error.
func (h *Handle) SetKey(key string) error {
	if key == "" {
		return domain.NewValidationError("flag key cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if key == h.key {
		return nil
	}
	h.key = key
	h.gen++
	h.requested = false
	h.waiting = false
	h.pending = nil
	h.err = nil
	return nil
}

// View returns the current view without blocking. When the flag is
// missing it starts the point fetch, or schedules it for after a running
// bulk populate.
func (h *Handle) View() Result {
	res, _ := h.view()
	return res
}

// view computes the result and returns the channel of the pending point
// fetch, if any.
func (h *Handle) view() (Result, <-chan struct{}) {
	snap := h.r.store.Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	flag, cached := snap.Get(h.key)
	h.r.telemetry.RecordLookup(context.Background(), h.key, cached)

	inFlight := h.r.populator.InFlight()
	bulkBusy := inFlight || h.r.populator.Loading()

	if !cached && h.opts.RequireFetch && !h.requested {
		if inFlight {
			h.deferLocked()
		} else {
			h.startLocked(context.Background())
		}
	}

	res := Result{
		Key:     h.key,
		Enabled: h.opts.FallbackEnabled,
		Payload: h.opts.FallbackPayload,
		Err:     h.err,
	}
	if cached {
		res.Flag = &flag
		res.Enabled = flag.Enabled
		if flag.Payload != nil {
			res.Payload = flag.Payload
		}
	}
	if res.Err == nil {
		res.Err = h.r.populator.Err()
	}
	res.IsLoading = (bulkBusy && !cached) || h.pending != nil || (!cached && !h.requested)

	return res, h.pending
}

// startLocked marks the handle requested and starts the shared fetch.
func (h *Handle) startLocked(ctx context.Context) <-chan singleflight.Result {
	h.requested = true
	done := make(chan struct{})
	h.pending = done
	h.err = nil

	key, gen := h.key, h.gen
	ch := h.r.fetch(ctx, key)
	out := make(chan singleflight.Result, 1)

	go func() {
		res := <-ch
		h.mu.Lock()
		if h.gen == gen && h.pending == done {
			h.pending = nil
			h.err = res.Err
		}
		h.mu.Unlock()
		close(done)
		out <- res
	}()
	return out
}

// deferLocked re-evaluates the handle once the running populate settles.
func (h *Handle) deferLocked() {
	if h.waiting {
		return
	}
	h.waiting = true
	gen := h.gen

	go func() {
		_ = h.r.populator.Wait(context.Background())

		h.mu.Lock()
		stale := h.gen != gen
		if !stale {
			h.waiting = false
		}
		h.mu.Unlock()

		if !stale {
			h.View()
		}
	}()
}

// Await drives the handle until it settles: it waits for a running bulk
// populate, then for the point fetch if one is needed. With RequireFetch
// disabled a missing flag settles immediately with IsLoading set.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	for {
		if err := h.r.populator.Wait(ctx); err != nil {
			return h.View(), err
		}

		res, pending := h.view()
		if pending == nil && !h.r.populator.InFlight() {
			return res, nil
		}
		if pending == nil {
			continue
		}

		select {
		case <-pending:
		case <-ctx.Done():
			return h.View(), ctx.Err()
		}
	}
}

// Refresh re-fetches the flag. On success the store is updated; on failure
// the error is recorded on the handle and returned. If ctx ends first the
// fetch keeps running and Refresh returns ctx.Err().
func (h *Handle) Refresh(ctx context.Context) (domain.Flag, error) {
	h.mu.Lock()
	ch := h.startLocked(ctx)
	h.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Flag{}, res.Err
		}
		return res.Val.(domain.Flag), nil
	case <-ctx.Done():
		return domain.Flag{}, ctx.Err()
	}
}
