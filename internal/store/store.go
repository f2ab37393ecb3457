// Package store holds the flag state shared by every consumer of a scope.
//
// The store is the only mutable shared resource of a scope. Writers go
// through UpsertOne, UpsertMany or Replace; each call publishes exactly one
// new Snapshot and notifies subscribers. Readers only ever see immutable
// snapshots.
package store

import (
	"sync"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
)

// Store is a copy-on-write, insertion-ordered flag map.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	version uint64
	closed  bool

	nextSubID   int
	subscribers map[int]chan Snapshot
}

// New creates a store, optionally pre-seeded with an initial snapshot.
func New(initial []domain.Flag) *Store {
	s := &Store{
		subscribers: make(map[int]chan Snapshot),
	}
	s.current = fromFlags(validOnly(initial))
	if len(initial) > 0 {
		s.version = 1
		s.current.version = 1
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UpsertOne replaces or inserts a single record.
func (s *Store) UpsertOne(flag domain.Flag) Snapshot {
	return s.UpsertMany([]domain.Flag{flag})
}

// UpsertMany applies the records in order as one transition.
// Records with an empty key are ignored. After Close it is a no-op.
func (s *Store) UpsertMany(flags []domain.Flag) Snapshot {
	flags = validOnly(flags)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(flags) == 0 {
		return s.current
	}

	s.publishLocked(s.current.with(flags))
	return s.current
}

// Replace swaps the whole state for the given records.
func (s *Store) Replace(flags []domain.Flag) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.current
	}

	s.publishLocked(fromFlags(validOnly(flags)))
	return s.current
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition. Delivery coalesces: a slow reader only sees the newest state.
// The channel is closed by cancel or by Close.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close stops accepting mutations and releases subscribers.
// The last snapshot stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) publishLocked(next Snapshot) {
	s.version++
	next.version = s.version
	s.current = next

	for _, ch := range s.subscribers {
		select {
		case ch <- next:
		default:
			// drop the stale value the reader has not consumed yet
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

func validOnly(flags []domain.Flag) []domain.Flag {
	out := flags[:0:0]
	for _, f := range flags {
		if f.Validate() == nil {
			out = append(out, f)
		}
	}
	return out
}
