package store

import (
	"sync"
	"testing"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flag(key string, enabled bool) domain.Flag {
	return domain.Flag{Key: key, Enabled: enabled}
}

func TestStore_NewEmpty(t *testing.T) {
	s := New(nil)

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, uint64(0), snap.Version())
	assert.Empty(t, snap.Flags())
}

func TestStore_NewSeeded(t *testing.T) {
	s := New([]domain.Flag{flag("header", true), flag("footer", false)})

	snap := s.Snapshot()
	assert.Equal(t, []string{"header", "footer"}, snap.Keys())
	got, ok := snap.Get("header")
	require.True(t, ok)
	assert.True(t, got.Enabled)
}

func TestStore_UpsertOne_LeavesPriorSnapshot(t *testing.T) {
	s := New([]domain.Flag{flag("a", false)})
	before := s.Snapshot()

	after := s.UpsertOne(flag("a", true))

	prior, _ := before.Get("a")
	assert.False(t, prior.Enabled, "prior snapshot must not change")
	updated, _ := after.Get("a")
	assert.True(t, updated.Enabled)
	assert.NotEqual(t, before.Version(), after.Version())
}

func TestStore_UpsertOne_KeepsInsertionOrder(t *testing.T) {
	s := New([]domain.Flag{flag("a", false), flag("b", false)})

	s.UpsertOne(flag("c", true))
	s.UpsertOne(flag("a", true))

	assert.Equal(t, []string{"a", "b", "c"}, s.Snapshot().Keys())
}

func TestStore_UpsertMany_SingleTransition(t *testing.T) {
	s := New(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	before := s.Snapshot().Version()
	snap := s.UpsertMany([]domain.Flag{flag("a", true), flag("b", false), flag("a", false)})

	assert.Equal(t, before+1, snap.Version())
	assert.Equal(t, []string{"a", "b"}, snap.Keys())
	a, _ := snap.Get("a")
	assert.False(t, a.Enabled, "last write wins inside a batch")

	select {
	case got := <-ch:
		assert.Equal(t, snap.Version(), got.Version())
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	select {
	case <-ch:
		t.Fatal("expected exactly one notification")
	default:
	}
}

func TestStore_UpsertMany_EmptyIsNoop(t *testing.T) {
	s := New([]domain.Flag{flag("a", true)})
	before := s.Snapshot()

	after := s.UpsertMany(nil)
	assert.Equal(t, before.Version(), after.Version())
}

func TestStore_IgnoresEmptyKeys(t *testing.T) {
	s := New(nil)
	snap := s.UpsertMany([]domain.Flag{{Key: ""}, flag("a", true)})

	assert.Equal(t, []string{"a"}, snap.Keys())
	for _, key := range snap.Keys() {
		f, _ := snap.Get(key)
		assert.Equal(t, key, f.Key)
	}
}

func TestStore_Replace(t *testing.T) {
	s := New([]domain.Flag{flag("a", true), flag("b", true)})

	snap := s.Replace([]domain.Flag{flag("c", false)})

	assert.Equal(t, []string{"c"}, snap.Keys())
	assert.False(t, snap.Has("a"))
}

func TestStore_SnapshotCopiesAreIndependent(t *testing.T) {
	s := New([]domain.Flag{flag("a", true)})
	snap := s.Snapshot()

	m := snap.Map()
	m["a"] = flag("a", false)
	keys := snap.Keys()
	keys[0] = "zzz"

	got, _ := snap.Get("a")
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{"a"}, snap.Keys())
}

func TestStore_SubscribeCoalesces(t *testing.T) {
	s := New(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.UpsertOne(flag("a", true))
	s.UpsertOne(flag("b", true))
	last := s.UpsertOne(flag("c", true))

	got := <-ch
	assert.Equal(t, last.Version(), got.Version())
	assert.Equal(t, 3, got.Len())
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := New(nil)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
}

func TestStore_CloseDropsMutations(t *testing.T) {
	s := New([]domain.Flag{flag("a", true)})
	ch, _ := s.Subscribe()

	s.Close()
	s.Close()
	snap := s.UpsertOne(flag("b", true))

	assert.True(t, s.Closed())
	assert.False(t, snap.Has("b"))
	assert.True(t, s.Snapshot().Has("a"), "last snapshot stays readable")

	_, open := <-ch
	assert.False(t, open)

	late, _ := s.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	s := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.UpsertOne(flag(string(rune('a'+i%26)), i%2 == 0))
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 26, snap.Len())
	assert.Equal(t, uint64(50), snap.Version())
}

func BenchmarkStore_UpsertOne(b *testing.B) {
	seed := make([]domain.Flag, 0, 200)
	for i := 0; i < 200; i++ {
		seed = append(seed, flag(string(rune(0x4e00+i)), true))
	}
	s := New(seed)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.UpsertOne(flag("hot", i%2 == 0))
	}
}
