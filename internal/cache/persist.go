package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible engine revision.
const snapshotVersion = 1

// snapshot is the on-disk representation of one cache instance.
type snapshot[V any] struct {
	Version int               `json:"version"`
	Name    string            `json:"name"`
	Meta    map[string]string `json:"meta,omitempty"`
	SavedAt time.Time         `json:"saved_at"`
	Entries []snapshotEntry[V] `json:"entries"`
}

// snapshotEntry carries one persisted entry. Recency order is reconstructed
// from LastAccessedAt on load.
type snapshotEntry[V any] struct {
	Key            string    `json:"key"`
	Value          V         `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Size           int64     `json:"size,omitempty"`
}

// acquireFileLock takes exclusive ownership of the persistence path. Failure
// to lock (another process owns it) downgrades the instance to memory-only
// operation rather than failing construction.
func (c *Cache[V]) acquireFileLock() {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		c.logger.Warn("cannot create cache directory, running memory-only",
			"dir", dir, "error", err)
		return
	}

	c.fileLock = flock.New(c.path + ".lock")
	locked, err := c.fileLock.TryLock()
	if err != nil || !locked {
		c.logger.Warn("cache snapshot path is locked by another process, running memory-only",
			"path", c.path, "error", err)
		c.fileLock = nil
		return
	}
	c.locked = true
}

// hydrate loads the snapshot at c.path. Persistence is an optimization, not
// a correctness requirement: any failure here leaves the cache cold.
func (c *Cache[V]) hydrate() {
	entries, err := c.loadSnapshot()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("discarding cache snapshot", "path", c.path, "error", err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	restored := 0
	// Entries are saved in recency order, least recent first. Rebuild from
	// the most-recent end so a capacity shrunk between runs keeps the most
	// recently used subset, not the oldest one.
	for i := len(entries) - 1; i >= 0; i-- {
		se := entries[i]
		if c.ttl > 0 && now.Sub(se.CreatedAt) > c.ttl {
			continue // dead weight, drop on load
		}
		if c.capacity > 0 && len(c.index) >= c.capacity {
			break
		}
		ent := &entry[V]{
			key:            se.Key,
			value:          se.Value,
			createdAt:      se.CreatedAt,
			lastAccessedAt: se.LastAccessedAt,
			size:           se.Size,
		}
		c.index[se.Key] = c.recency.PushBack(ent)
		c.totalSize += se.Size
		restored++
	}
	c.updateGauges()
	c.logger.Info("hydrated cache from snapshot",
		"path", c.path, "restored", restored, "on_disk", len(entries))
}

// loadSnapshot reads and validates the snapshot file, returning its entries
// in least-recently-used-first order.
func (c *Cache[V]) loadSnapshot() ([]snapshotEntry[V], error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	var snap snapshot[V]
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if snap.Name != c.name {
		return nil, fmt.Errorf("snapshot belongs to cache %q, want %q", snap.Name, c.name)
	}
	if !maps.Equal(snap.Meta, c.meta) {
		return nil, fmt.Errorf("snapshot metadata mismatch: got %v, want %v", snap.Meta, c.meta)
	}
	return snap.Entries, nil
}

// Flush writes all non-expired entries to the persistence path. The write is
// atomic with respect to crash: the snapshot goes to a temp file first and
// is renamed into place only on success. Flush is a no-op when persistence
// is disabled or the instance is memory-only.
//
// Disk failures are logged and swallowed; the in-memory cache keeps working.
func (c *Cache[V]) Flush() {
	if c.path == "" || !c.locked {
		return
	}

	c.mu.Lock()
	now := c.clock()
	entries := make([]snapshotEntry[V], 0, c.recency.Len())
	// Walk back-to-front so the snapshot is least-recently-used first.
	for elem := c.recency.Back(); elem != nil; elem = elem.Prev() {
		ent := elem.Value.(*entry[V])
		if c.expired(ent, now) {
			continue
		}
		entries = append(entries, snapshotEntry[V]{
			Key:            ent.key,
			Value:          ent.value,
			CreatedAt:      ent.createdAt,
			LastAccessedAt: ent.lastAccessedAt,
			Size:           ent.size,
		})
	}
	snap := snapshot[V]{
		Version: snapshotVersion,
		Name:    c.name,
		Meta:    c.meta,
		SavedAt: now,
		Entries: entries,
	}
	c.mu.Unlock()

	if err := writeAtomic(c.path, snap); err != nil {
		c.logger.Warn("cache flush failed, continuing memory-only", "path", c.path, "error", err)
		return
	}
	c.logger.Debug("flushed cache snapshot", "path", c.path, "entries", len(entries))
}

// Close flushes the snapshot and releases the persistence file lock. Safe to
// call on a memory-only instance.
func (c *Cache[V]) Close() {
	c.Flush()
	if c.fileLock != nil {
		if err := c.fileLock.Unlock(); err != nil {
			c.logger.Warn("failed to release cache file lock", "error", err)
		}
		c.fileLock = nil
		c.locked = false
	}
}

// writeAtomic marshals v and writes it to path via temp-file-and-rename.
func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
