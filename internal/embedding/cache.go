// Package embedding caches embedding vectors keyed by normalized chunk text,
// batching cache misses into bounded calls against the external model.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/signal23/signal23-ai/internal/cache"
)

// DefaultBatchSize caps one call to the embedding model. Matches the
// upstream request-size limit we run against.
const DefaultBatchSize = 10

var (
	// ErrEmbedderNil indicates the cache was constructed without a model.
	ErrEmbedderNil = errors.New("embedder is nil")

	// ErrBatchShape indicates the model broke the same-length contract.
	ErrBatchShape = errors.New("embedding batch returned wrong number of vectors")
)

// Config configures an embedding cache instance.
type Config struct {
	Capacity     int
	TTL          time.Duration
	SnapshotPath string  // empty disables persistence
	BatchSize    int     // texts per upstream call; 0 means DefaultBatchSize
	RatePerSec   float64 // upstream calls per second; 0 means unlimited

	// Model and Dimension identify the embedding space. They are recorded
	// in the snapshot so a restart with a different model discards the old
	// vectors instead of serving them.
	Model     string
	Dimension int
}

// Cache wraps an ai.Embedder with the LRU-TTL engine. Two textually
// identical chunks always share one cached vector, across documents and
// across calls; embedding is deterministic for a fixed model so this is safe.
type Cache struct {
	engine    *cache.Cache[[]float32]
	embedder  ai.Embedder
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewCache creates the embedding cache, hydrating it from the snapshot path
// when one is configured and its recorded model/dimension match.
func NewCache(cfg Config, embedder ai.Embedder, logger *slog.Logger) (*Cache, error) {
	if embedder == nil {
		return nil, ErrEmbedderNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	opts := []cache.Option[[]float32]{cache.WithLogger[[]float32](logger)}
	if cfg.SnapshotPath != "" {
		meta := map[string]string{
			"model":     cfg.Model,
			"dimension": strconv.Itoa(cfg.Dimension),
		}
		opts = append(opts, cache.WithPersistence[[]float32](cfg.SnapshotPath, meta))
	}

	return &Cache{
		engine:    cache.New("embedding", cfg.Capacity, cfg.TTL, opts...),
		embedder:  embedder,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With("component", "embedding_cache"),
	}, nil
}

// Key derives the cache key for one chunk text: whitespace-normalized
// content hashed with SHA-256. Case is preserved since embeddings are
// case-sensitive.
func Key(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

// normalize trims and collapses whitespace runs so formatting-only
// differences share a cache entry.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// GetOrEmbed returns one vector per input text, in input order.
//
// Already-cached texts are served without touching the model. The uncached
// remainder is deduplicated and embedded in sequential batches of at most
// the configured batch size. Each successful batch is written back
// immediately; a failing batch writes nothing for its texts, so a retry
// re-embeds exactly the texts that never got a vector.
func (c *Cache) GetOrEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))

	// Partition into cached and uncached, deduplicating identical content so
	// a text repeated across chunks is embedded at most once.
	var pending []string                // unique normalized-key misses, input order
	positions := make(map[string][]int) // key -> result indexes awaiting it
	for i, text := range texts {
		key := Key(text)
		if vec, ok := c.engine.Get(key); ok {
			result[i] = vec
			continue
		}
		if _, seen := positions[key]; !seen {
			pending = append(pending, text)
		}
		positions[key] = append(positions[key], i)
	}

	if len(pending) == 0 {
		return result, nil
	}

	for start := 0; start < len(pending); start += c.batchSize {
		end := min(start+c.batchSize, len(pending))
		batch := pending[start:end]

		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		for j, text := range batch {
			key := Key(text)
			c.engine.Put(key, vectors[j], int64(4*len(vectors[j])))
			for _, idx := range positions[key] {
				result[idx] = vectors[j]
			}
		}
	}

	c.logger.Debug("embedded uncached texts",
		"requested", len(texts),
		"embedded", len(pending))
	return result, nil
}

// embedBatch issues one model call for the given texts, honoring the rate
// limit, and validates the same-length response contract.
func (c *Cache) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
	}

	req := &ai.EmbedRequest{}
	for _, text := range batch {
		req.Input = append(req.Input, ai.DocumentFromText(text, nil))
	}

	resp, err := c.embedder.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d texts: %w", len(batch), err)
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBatchShape, len(resp.Embeddings), len(batch))
	}

	vectors := make([][]float32, len(batch))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", ErrBatchShape, i)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
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
