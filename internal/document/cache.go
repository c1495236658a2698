// Package document caches loaded and chunked documents so the external
// content source is consulted at most once per distinct document revision.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/signal23/signal23-ai/internal/cache"
	"github.com/signal23/signal23-ai/internal/chunk"
)

var (
	// ErrEmptyDocID indicates GetOrLoad was called without a document ID.
	ErrEmptyDocID = errors.New("document ID is empty")
)

// Raw is the content returned by a Loader before chunking.
type Raw struct {
	Content  string
	Metadata map[string]string
}

// Loader fetches raw content for a document from the external source.
// Interfaces are defined by the consumer; any content client (Notion, file
// system, HTTP) can satisfy this.
type Loader interface {
	Load(ctx context.Context, docID string) (Raw, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context, docID string) (Raw, error)

func (f LoaderFunc) Load(ctx context.Context, docID string) (Raw, error) {
	return f(ctx, docID)
}

// Chunker splits raw text into ordered chunks. *chunk.Splitter satisfies it.
type Chunker interface {
	Split(text string) []chunk.Chunk
}

// Chunked is the cached unit: the materialized chunk sequence for one
// document revision plus the source metadata captured at load time.
type Chunked struct {
	DocID    string            `json:"doc_id"`
	Chunks   []chunk.Chunk     `json:"chunks"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Cache wraps the LRU-TTL engine keyed by document identity.
type Cache struct {
	engine *cache.Cache[Chunked]
	logger *slog.Logger
}

// Config configures a document cache instance.
type Config struct {
	Capacity     int
	TTL          time.Duration
	SnapshotPath string // empty disables persistence
}

// NewCache creates the document cache, hydrating it from the snapshot path
// when one is configured.
func NewCache(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []cache.Option[Chunked]{cache.WithLogger[Chunked](logger)}
	if cfg.SnapshotPath != "" {
		opts = append(opts, cache.WithPersistence[Chunked](cfg.SnapshotPath, nil))
	}

	return &Cache{
		engine: cache.New("document", cfg.Capacity, cfg.TTL, opts...),
		logger: logger.With("component", "document_cache"),
	}
}

// Key derives the cache key for one document revision. fingerprint is a
// content-derived revision marker from the source (a last-edited timestamp
// or content hash), so source edits miss the cache naturally.
func Key(docID, fingerprint string) string {
	sum := sha256.Sum256([]byte(docID + "\x00" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// GetOrLoad returns the chunk sequence for the given document revision.
//
// On a hit the loader and chunker are not invoked. On a miss the loader
// fetches raw content, the chunker splits it, and the result is stored under
// Key(docID, fingerprint). A loader failure propagates unmodified and writes
// nothing, so a retry sees a clean miss. A load that completes after the
// caller's context is cancelled is still written back; the work is not
// wasted, and a concurrent newer load for the same key simply wins by
// completing later.
//
// The returned slice is the caller's to keep; mutating it does not affect
// the cached entry.
func (c *Cache) GetOrLoad(ctx context.Context, docID, fingerprint string, loader Loader, chunker Chunker) ([]chunk.Chunk, error) {
	if docID == "" {
		return nil, ErrEmptyDocID
	}

	key := Key(docID, fingerprint)
	if hit, ok := c.engine.Get(key); ok {
		c.logger.Debug("document cache hit", "doc_id", docID)
		return copyChunks(hit.Chunks), nil
	}

	raw, err := loader.Load(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading document %q: %w", docID, err)
	}

	chunks := chunker.Split(raw.Content)
	entry := Chunked{DocID: docID, Chunks: chunks, Metadata: raw.Metadata}
	c.engine.Put(key, entry, sizeOf(chunks))

	c.logger.Debug("document loaded and chunked",
		"doc_id", docID,
		"chunks", len(chunks),
		"content_bytes", len(raw.Content))
	return copyChunks(chunks), nil
}

// copyChunks detaches the returned slice from the cached entry. chunk.Chunk
// holds only value fields, so a shallow copy is enough.
func copyChunks(chunks []chunk.Chunk) []chunk.Chunk {
	if chunks == nil {
		return nil
	}
	out := make([]chunk.Chunk, len(chunks))
	copy(out, chunks)
	return out
}

// Stats exposes the underlying engine counters.
func (c *Cache) Stats() cache.Stats { return c.engine.Stats() }

// RunSweeper drives periodic expiry until ctx is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	c.engine.RunSweeper(ctx, interval)
}

// Flush forces a persistence write.
func (c *Cache) Flush() { c.engine.Flush() }

// Close flushes and releases the snapshot file.
func (c *Cache) Close() { c.engine.Close() }

func sizeOf(chunks []chunk.Chunk) int64 {
	var n int64
	for _, ch := range chunks {
		n += int64(len(ch.Text))
	}
	return n
}
