// Package cache provides the content-addressed result cache that sits
// between the execution coordinator and the process orchestrator. Entries
// are keyed by a deterministic hash of (tool, target, parameters), so
// semantically identical requests hit the same entry regardless of
// parameter ordering or caller formatting.
//
// The cache is a performance layer, never a correctness dependency: any
// backend failure is reported to callers as a miss, and execution proceeds
// live.
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hexstrike/hexstrike/internal/types"
)

// Entry is one stored result.
type Entry struct {
	Key      string        `json:"key"`
	Target   string        `json:"target"`
	Value    []byte        `json:"value"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its freshness window at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// Store is the backing storage behind the cache. Implementations must be
// safe for concurrent use. A missing key is reported with a
// CACHE_UNAVAILABLE-free nil entry, not an error; errors mean the backend
// itself is unavailable.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error

	// DeleteTarget removes every entry stored for the given normalized
	// target, across all tools and parameter combinations. Returns the
	// number of entries removed.
	DeleteTarget(ctx context.Context, target string) (int, error)

	Len(ctx context.Context) (int, error)
	Close() error
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	EntryCount int     `json:"entry_count"`
}

// Cache wraps a Store with key derivation, TTL handling, and hit/miss
// accounting.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	logger     *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a Cache on top of the given store.
func New(store Store, defaultTTL time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// DefaultTTL returns the TTL applied when Put is called with ttl <= 0.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get looks up the cached result for (toolID, target, params). The second
// return value is false on a miss. Expired entries behave exactly like
// misses and are opportunistically evicted. Backend failures degrade to a
// miss, never an error.
func (c *Cache) Get(ctx context.Context, toolID, target string, params map[string]any) ([]byte, bool) {
	key, err := Key(toolID, target, params)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache backend unavailable, treating as miss", "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if entry == nil {
		c.misses.Add(1)
		return nil, false
	}
	if entry.Expired(time.Now()) {
		// Lazy expiry: evict on read. Eviction failure is irrelevant to
		// the caller; the entry is stale either way.
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Debug("failed to evict expired entry", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.Value, true
}

// Put stores a result for (toolID, target, params) with the given TTL.
// A non-positive ttl falls back to the cache default. Backend failures are
// logged and swallowed; a cache write is never worth failing a run for.
func (c *Cache) Put(ctx context.Context, toolID, target string, params map[string]any, value []byte, ttl time.Duration) {
	key, err := Key(toolID, target, params)
	if err != nil {
		c.logger.Warn("failed to derive cache key", "tool", toolID, "error", err)
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	entry := &Entry{
		Key:      key,
		Target:   NormalizeTarget(target),
		Value:    value,
		StoredAt: time.Now(),
		TTL:      ttl,
	}
	if err := c.store.Put(ctx, entry); err != nil {
		c.logger.Warn("cache write failed", "tool", toolID, "error", err)
	}
}

// InvalidateTarget removes every entry derived from the given target,
// across all tools and parameter combinations.
func (c *Cache) InvalidateTarget(ctx context.Context, target string) (int, error) {
	n, err := c.store.DeleteTarget(ctx, NormalizeTarget(target))
	if err != nil {
		return 0, types.WrapError(types.CACHE_UNAVAILABLE, "target invalidation failed", err)
	}
	c.logger.Info("cache invalidated", "target", target, "entries_removed", n)
	return n, nil
}

// Stats returns a snapshot of hit/miss counters and the current entry
// count. An unavailable backend reports zero entries.
func (c *Cache) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	count, err := c.store.Len(ctx)
	if err != nil {
		count = 0
	}
	return Stats{
		Hits:       hits,
		Misses:     misses,
		HitRate:    rate,
		EntryCount: count,
	}
}

// Health reports the cache's backend availability.
func (c *Cache) Health(ctx context.Context) types.HealthStatus {
	if _, err := c.store.Len(ctx); err != nil {
		return types.Degraded("cache backend unavailable, operating miss-only")
	}
	return types.Healthy("cache backend reachable")
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}
