package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(capacity int, ttl time.Duration, clock *fakeClock) *Cache[string] {
	return New[string]("test", capacity, ttl, WithClock[string](clock.Now))
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(10, 0, newFakeClock())

	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss on empty cache")
	}

	stats := c.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Errorf("stats = %+v, want 1 miss, 0 hits", stats)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(10, 0, newFakeClock())

	c.Put("a", "alpha", 5)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got != "alpha" {
		t.Errorf("Get(a) = %q, want %q", got, "alpha")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	c := newTestCache(10, 0, newFakeClock())

	c.Put("a", "old", 3)
	c.Put("a", "new", 3)

	if got, _ := c.Get("a"); got != "new" {
		t.Errorf("Get(a) = %q, want %q", got, "new")
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1 after replacing", n)
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(10, time.Second, clock)

	c.Put("a", "alpha", 0)

	clock.Advance(500 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry visible past TTL")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("expired entry not purged on access, Len() = %d", n)
	}
}

func TestAccessDoesNotExtendTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(10, time.Second, clock)

	c.Put("a", "alpha", 0)
	clock.Advance(800 * time.Millisecond)
	c.Get("a") // refreshes recency, not age
	clock.Advance(400 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("read refreshed entry age; TTL must be absolute from creation")
	}
}

func TestCapacityInvariant(t *testing.T) {
	c := newTestCache(2, 0, newFakeClock())

	for i, key := range []string{"a", "b", "c"} {
		c.Put(key, key, 0)
		if n := c.Len(); n > 2 {
			t.Fatalf("after put %d, Len() = %d exceeds capacity 2", i, n)
		}
	}

	if _, ok := c.Get("a"); ok {
		t.Error("least-recently-used entry a should have been evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q should have survived eviction", key)
		}
	}
}

func TestRecencyPromotion(t *testing.T) {
	c := newTestCache(2, 0, newFakeClock())

	c.Put("a", "alpha", 0)
	c.Put("b", "beta", 0)
	c.Get("a") // promote a past b
	c.Put("c", "gamma", 0)

	if _, ok := c.Get("b"); ok {
		t.Error("b was least recently used and should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was promoted by the read and should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c was just written and should survive")
	}
}

func TestExpiredEvictedBeforeLive(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(2, time.Second, clock)

	c.Put("dead", "x", 0)
	clock.Advance(500 * time.Millisecond)
	c.Put("live", "y", 0)
	c.Get("dead") // promote "dead" to most recently used while still alive
	clock.Advance(700 * time.Millisecond) // "dead" past TTL, "live" not

	// Over capacity: plain LRU would evict "live" (the recency tail), but
	// the expired "dead" entry must be preferred as the victim.
	c.Put("new", "z", 0)

	if _, ok := c.Get("live"); !ok {
		t.Error("live entry evicted while an expired entry was available")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new entry missing")
	}
}

func TestEvictionTieBreakIsInsertionOrder(t *testing.T) {
	// All entries share one timestamp via the fake clock; eviction order
	// must still be deterministic: oldest insertion goes first.
	clock := newFakeClock()
	c := newTestCache(3, 0, clock)

	c.Put("first", "1", 0)
	c.Put("second", "2", 0)
	c.Put("third", "3", 0)
	c.Put("fourth", "4", 0)

	if _, ok := c.Get("first"); ok {
		t.Error("tie-break must evict the earliest insertion first")
	}
	for _, key := range []string{"second", "third", "fourth"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q evicted out of order", key)
		}
	}
}

func TestZeroCapacityDisablesCache(t *testing.T) {
	c := newTestCache(0, 0, newFakeClock())

	c.Put("a", "alpha", 0)

	if _, ok := c.Get("a"); ok {
		t.Fatal("capacity 0 must drop every put")
	}
	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1 (immediate eviction)", stats.Evictions)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(10, 0, clock)

	c.Put("a", "alpha", 0)
	clock.Advance(1000 * time.Hour)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("TTL 0 must disable expiry")
	}
	if n := c.EvictExpired(); n != 0 {
		t.Errorf("EvictExpired() = %d, want 0 with TTL disabled", n)
	}
}

func TestEvictExpiredSweepsUntouchedKeys(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(10, time.Minute, clock)

	c.Put("a", "1", 0)
	c.Put("b", "2", 0)
	clock.Advance(30 * time.Second)
	c.Put("c", "3", 0)
	clock.Advance(45 * time.Second) // a, b past TTL; c still live

	if n := c.EvictExpired(); n != 2 {
		t.Fatalf("EvictExpired() = %d, want 2", n)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1 after sweep", n)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("live entry removed by sweep")
	}
}

func TestStatsAccounting(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(10, 0, clock)

	c.Put("a", "alpha", 100)
	c.Put("b", "beta", 50)
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.SizeBytes != 150 {
		t.Errorf("SizeBytes = %d, want 150", stats.SizeBytes)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]("test", 64, time.Minute)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("key-%d", i%32)
				c.Put(key, g*1000+i, 0)
				c.Get(key)
				if i%50 == 0 {
					c.EvictExpired()
				}
			}
		}()
	}
	wg.Wait()

	if n := c.Len(); n > 64 {
		t.Errorf("capacity invariant violated under concurrency: Len() = %d", n)
	}
}
