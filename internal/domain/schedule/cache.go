package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DateCacheTTL is how long a resolved per-year date pool stays cached.
// Administrators editing date pools must expect eventual consistency within
// this window; the trade-off favors throughput over instant consistency.
const DateCacheTTL = time.Hour

// DateCache memoizes resolved date pools per (date type, year).  The resolver
// receives an implementation by injection so deployments can choose between
// process-local and shared (Redis) caching, and tests can drop caching
// entirely.
type DateCache interface {
	// Get returns the cached date set for key, or false on a miss.  Cache
	// failures are treated as misses; the resolver recomputes.
	Get(ctx context.Context, key string) ([]time.Time, bool)

	// Set stores the date set under key for the given TTL.
	Set(ctx context.Context, key string, dates []time.Time, ttl time.Duration)
}

// DateCacheKey builds the canonical cache key for a date type's year pool.
func DateCacheKey(identifier string, year int) string {
	return fmt.Sprintf("datetype:%s:%d", identifier, year)
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory implementation
// ─────────────────────────────────────────────────────────────────────────────

type memoryEntry struct {
	dates     []time.Time
	expiresAt time.Time
}

// MemoryDateCache is a process-local DateCache with per-entry TTL.  Safe for
// concurrent use.
type MemoryDateCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewMemoryDateCache returns an empty in-memory cache.
func NewMemoryDateCache() *MemoryDateCache {
	return &MemoryDateCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryDateCache) Get(_ context.Context, key string) ([]time.Time, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	out := make([]time.Time, len(e.dates))
	copy(out, e.dates)
	return out, true
}

func (c *MemoryDateCache) Set(_ context.Context, key string, dates []time.Time, ttl time.Duration) {
	stored := make([]time.Time, len(dates))
	copy(stored, dates)
	c.mu.Lock()
	c.entries[key] = memoryEntry{dates: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Purge drops all entries; used when reference data is re-imported.
func (c *MemoryDateCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
}

// NopDateCache disables memoization; every resolution recomputes.
type NopDateCache struct{}

func (NopDateCache) Get(context.Context, string) ([]time.Time, bool)          { return nil, false }
func (NopDateCache) Set(context.Context, string, []time.Time, time.Duration) {}
