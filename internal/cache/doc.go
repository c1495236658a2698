// Package cache implements the bounded key/value cache engine shared by the
// document and embedding layers of the ingestion pipeline.
//
// The engine combines two independent bounds:
//   - Capacity: when the number of live entries exceeds the configured
//     capacity, least-recently-used entries are evicted. Already-expired
//     entries are preferred as eviction victims; ties among equally old
//     entries are broken by stable insertion order.
//   - TTL: entries older than the configured TTL are never returned and are
//     lazily purged on access. A periodic sweeper reclaims expired entries
//     that are never re-queried (see Cache.RunSweeper).
//
// Degenerate configurations are well-defined rather than errors: capacity
// zero disables the cache (every Put is dropped, every Get misses), and TTL
// zero disables expiry (eviction is purely capacity-driven).
//
// Each Cache optionally owns a persistence file. Snapshots are written
// atomically (temp file + rename) and loaded best-effort on construction:
// an absent, corrupt, or mismatched snapshot starts the cache cold, never
// fails startup. The snapshot path is guarded by a flock so two processes
// cannot clobber each other's state.
//
// Cache is safe for concurrent use. All mutation goes through a single
// mutex per instance; operations on the same key are observed in the
// caller's program order.
package cache
