package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// entry is the unit of storage inside the engine.
// Value must be JSON-serializable for persistence to work.
type entry[V any] struct {
	key            string
	value          V
	createdAt      time.Time
	lastAccessedAt time.Time
	size           int64
}

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"size_bytes"`
	HitRate   float64 `json:"hit_rate"`
}

// Cache is a capacity- and time-bounded key/value store with LRU eviction.
// The zero value is not usable; construct with New.
type Cache[V any] struct {
	name     string
	capacity int
	ttl      time.Duration

	mu        sync.Mutex
	index     map[string]*list.Element // key -> element holding *entry[V]
	recency   *list.List               // front = most recently used
	totalSize int64
	hits      uint64
	misses    uint64
	evictions uint64

	clock  func() time.Time
	logger *slog.Logger

	// Persistence state; zero-valued when persistence is disabled.
	path     string
	meta     map[string]string
	fileLock *flock.Flock
	locked   bool
}

// Option configures a Cache instance.
type Option[V any] func(*Cache[V])

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(c *Cache[V]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source. Tests use this to control expiry
// deterministically instead of sleeping.
func WithClock[V any](clock func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithPersistence enables best-effort disk persistence at path. meta is an
// opaque set of snapshot preconditions (e.g. embedding model and dimension);
// a snapshot whose metadata differs is discarded on load.
func WithPersistence[V any](path string, meta map[string]string) Option[V] {
	return func(c *Cache[V]) {
		c.path = path
		c.meta = meta
	}
}

// New creates a cache instance and, when persistence is configured, hydrates
// it from the snapshot at the configured path.
//
// name identifies the instance in logs and metrics (e.g. "document",
// "embedding"). capacity <= 0 disables storage entirely; ttl <= 0 disables
// expiry.
func New[V any](name string, capacity int, ttl time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		name:     name,
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		recency:  list.New(),
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("cache", name)

	if c.path != "" {
		c.acquireFileLock()
		c.hydrate()
	}

	return c
}

// Get returns the value stored under key. The boolean reports a cache hit.
// A hit promotes the entry to most-recently-used. An entry past its TTL is
// treated as absent and purged.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		cacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	now := c.clock()
	if c.expired(ent, now) {
		c.removeLocked(elem)
		c.misses++
		cacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	ent.lastAccessedAt = now
	c.recency.MoveToFront(elem)
	c.hits++
	cacheHits.WithLabelValues(c.name).Inc()
	return ent.value, true
}

// Put inserts or replaces the entry under key and marks it most-recently-
// used. size is an optional byte-size estimate used for accounting; pass 0
// when unknown. If the insertion pushes the instance over capacity, victims
// are evicted until the capacity invariant holds again.
func (c *Cache[V]) Put(key string, value V, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		// Cache disabled: the entry is dropped immediately.
		c.evictions++
		cacheEvictions.WithLabelValues(c.name).Inc()
		return
	}

	now := c.clock()
	if elem, ok := c.index[key]; ok {
		ent := elem.Value.(*entry[V])
		c.totalSize += size - ent.size
		ent.value = value
		ent.size = size
		ent.createdAt = now
		ent.lastAccessedAt = now
		c.recency.MoveToFront(elem)
		c.evictOverCapacityLocked()
		c.updateGauges()
		return
	}

	ent := &entry[V]{
		key:            key,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
		size:           size,
	}
	c.index[key] = c.recency.PushFront(ent)
	c.totalSize += size
	c.evictOverCapacityLocked()
	c.updateGauges()
}

// EvictExpired removes every entry whose age exceeds the TTL and returns the
// number of entries removed. Intended to be driven by RunSweeper so memory
// is reclaimed even for keys that are never re-queried.
func (c *Cache[V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictExpiredLocked()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.index),
		SizeBytes: c.totalSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Name returns the instance name used in logs and metrics.
func (c *Cache[V]) Name() string { return c.name }

// expired reports whether ent is past its TTL at time now.
func (c *Cache[V]) expired(ent *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(ent.createdAt) > c.ttl
}

// evictExpiredLocked sweeps all entries. Caller must hold c.mu.
func (c *Cache[V]) evictExpiredLocked() int {
	now := c.clock()
	removed := 0
	for elem := c.recency.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry[V]), now) {
			c.removeLocked(elem)
			removed++
		}
		elem = prev
	}
	if removed > 0 {
		c.logger.Debug("swept expired entries", "removed", removed, "remaining", len(c.index))
	}
	c.updateGauges()
	return removed
}

// evictOverCapacityLocked restores the capacity invariant. Expired entries
// are evicted first; the remainder fall to LRU order, which the recency list
// keeps deterministic (stable insertion order on ties). Caller must hold c.mu.
func (c *Cache[V]) evictOverCapacityLocked() {
	if len(c.index) <= c.capacity {
		return
	}

	// Prefer entries that are already dead.
	c.evictExpiredLocked()

	for len(c.index) > c.capacity {
		elem := c.recency.Back()
		if elem == nil {
			return
		}
		c.removeLocked(elem)
	}
}

// removeLocked unlinks an entry and counts the eviction. Caller must hold c.mu.
func (c *Cache[V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	c.recency.Remove(elem)
	delete(c.index, ent.key)
	c.totalSize -= ent.size
	c.evictions++
	cacheEvictions.WithLabelValues(c.name).Inc()
}

func (c *Cache[V]) updateGauges() {
	cacheEntries.WithLabelValues(c.name).Set(float64(len(c.index)))
}
