package store

import "github.com/OrlandoBitencourt/flagscope/internal/domain"

// Snapshot is an immutable, insertion-ordered view of the store.
// Snapshots are never modified after publication, so holders can keep
// old ones for comparison and read them without locking.
type Snapshot struct {
	version uint64
	order   []string
	flags   map[string]domain.Flag
}

func emptySnapshot() Snapshot {
	return Snapshot{flags: map[string]domain.Flag{}}
}

// Get returns the record stored under key.
func (s Snapshot) Get(key string) (domain.Flag, bool) {
	f, ok := s.flags[key]
	return f, ok
}

// Has reports whether key is present.
func (s Snapshot) Has(key string) bool {
	_, ok := s.flags[key]
	return ok
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.order)
}

// Keys returns the keys in insertion order.
func (s Snapshot) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Flags returns the records in insertion order.
func (s Snapshot) Flags() []domain.Flag {
	out := make([]domain.Flag, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.flags[key])
	}
	return out
}

// Map returns a copy of the records keyed by flag key.
func (s Snapshot) Map() map[string]domain.Flag {
	out := make(map[string]domain.Flag, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

// Version identifies the store transition that published this snapshot.
// Two snapshots with the same version hold the same state.
func (s Snapshot) Version() uint64 {
	return s.version
}

// with returns a new snapshot with flags upserted in order. The receiver
// is left untouched.
func (s Snapshot) with(flags []domain.Flag) Snapshot {
	next := Snapshot{
		order: make([]string, len(s.order), len(s.order)+len(flags)),
		flags: make(map[string]domain.Flag, len(s.flags)+len(flags)),
	}
	copy(next.order, s.order)
	for k, v := range s.flags {
		next.flags[k] = v
	}

	for _, f := range flags {
		if _, exists := next.flags[f.Key]; !exists {
			next.order = append(next.order, f.Key)
		}
		next.flags[f.Key] = f
	}
	return next
}

func fromFlags(flags []domain.Flag) Snapshot {
	return emptySnapshot().with(flags)
}
