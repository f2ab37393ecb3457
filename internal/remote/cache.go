package remote

import (
	"sync"
	"time"

	"github.com/OrlandoBitencourt/flagscope/internal/domain"
	"github.com/dgraph-io/ristretto"
)

const allFlagsKey = "flags:all"

// CacheConfig bounds the SDK-side response cache. It sits below the flag
// store and only saves network round trips between scopes that share a
// client.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int64

	// MetricsEnabled turns on ristretto hit/miss counters.
	MetricsEnabled bool
}

// DefaultCacheConfig mirrors the service SDK defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, TTL: 5 * time.Minute, MaxSize: 100}
}

// Cache holds decoded responses in ristretto, one cost unit per entry.
// A nil *Cache is a disabled cache.
//
// After Close every operation is a no-op, so fetches still in flight when
// the owning client closes can finish without touching the released store.
type Cache struct {
	mu     sync.RWMutex
	closed bool
	store  *ristretto.Cache
	ttl    time.Duration
}

// NewCache allocates a cache for at most config.MaxSize entries.
func NewCache(config CacheConfig) (*Cache, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultCacheConfig().MaxSize
	}
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig().TTL
	}

	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        config.MaxSize * 10,
		MaxCost:            config.MaxSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            config.MetricsEnabled,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{store: store, ttl: config.TTL}, nil
}

func flagKey(slug string) string {
	return "flag:" + slug
}

// acquire read-locks an open cache. The caller must call c.mu.RUnlock when
// it returns true.
func (c *Cache) acquire() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	return true
}

func (c *Cache) flag(slug string) (domain.Flag, bool) {
	if !c.acquire() {
		return domain.Flag{}, false
	}
	defer c.mu.RUnlock()

	v, found := c.store.Get(flagKey(slug))
	if !found {
		return domain.Flag{}, false
	}
	flag, ok := v.(domain.Flag)
	return flag, ok
}

func (c *Cache) setFlag(flag domain.Flag) {
	if !c.acquire() {
		return
	}
	defer c.mu.RUnlock()

	c.store.SetWithTTL(flagKey(flag.Key), flag, 1, c.ttl)
	c.store.Wait()
}

func (c *Cache) allFlags() ([]domain.Flag, bool) {
	if !c.acquire() {
		return nil, false
	}
	defer c.mu.RUnlock()

	v, found := c.store.Get(allFlagsKey)
	if !found {
		return nil, false
	}
	flags, ok := v.([]domain.Flag)
	if !ok {
		return nil, false
	}
	out := make([]domain.Flag, len(flags))
	copy(out, flags)
	return out, true
}

func (c *Cache) setAllFlags(flags []domain.Flag) {
	if !c.acquire() {
		return
	}
	defer c.mu.RUnlock()

	stored := make([]domain.Flag, len(flags))
	copy(stored, flags)
	c.store.SetWithTTL(allFlagsKey, stored, 1, c.ttl)
	for _, flag := range flags {
		c.store.SetWithTTL(flagKey(flag.Key), flag, 1, c.ttl)
	}
	c.store.Wait()
}

func (c *Cache) invalidate(slug string) {
	if !c.acquire() {
		return
	}
	defer c.mu.RUnlock()

	c.store.Del(flagKey(slug))
	c.store.Del(allFlagsKey)
}

// Clear drops every cached response.
func (c *Cache) Clear() {
	if !c.acquire() {
		return
	}
	defer c.mu.RUnlock()

	c.store.Clear()
}

// Metrics exposes ristretto hit/miss counters. Nil when the cache is
// disabled or CacheConfig.MetricsEnabled is off.
func (c *Cache) Metrics() *ristretto.Metrics {
	if c == nil {
		return nil
	}
	return c.store.Metrics
}

// Close releases the cache goroutines. It waits for operations already
// running; later ones are no-ops. Close is idempotent.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.store.Close()
}
