// Package pipeline orchestrates the ingestion and retrieval paths: page
// listing, the two cache layers, chunking, and the vector store.
//
// Ingestion (Sync): list pages from the source, resolve each through the
// document cache (load + chunk only on miss), resolve chunk texts through
// the embedding cache, then index chunk+vector pairs into the vector store.
//
// Retrieval (Query): embed the query text through the same embedding cache
// and run a similarity search.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signal23/signal23-ai/internal/cache"
	"github.com/signal23/signal23-ai/internal/chunk"
	"github.com/signal23/signal23-ai/internal/document"
	"github.com/signal23/signal23-ai/internal/vector"
)

// ErrNoPages indicates the source returned nothing to sync.
var ErrNoPages = errors.New("source returned no pages")

// Page is one syncable unit from the content source. Fingerprint is an
// opaque revision marker; a changed fingerprint forces a reload.
type Page struct {
	ID          string
	Title       string
	URL         string
	Fingerprint string
}

// Source lists syncable pages and loads their raw content. The Load half
// matches document.Loader so a Source can be handed to the document cache
// directly. notion.Loader satisfies this via the NotionSource adapter.
type Source interface {
	ListPages(ctx context.Context) ([]Page, error)
	Load(ctx context.Context, docID string) (document.Raw, error)
}

// DocumentCache resolves a page to its chunk sequence, loading and
// splitting only on miss. *document.Cache satisfies this.
type DocumentCache interface {
	GetOrLoad(ctx context.Context, docID, fingerprint string, loader document.Loader, chunker document.Chunker) ([]chunk.Chunk, error)
	Stats() cache.Stats
}

// Embedder resolves texts to vectors through the embedding cache.
// *embedding.Cache satisfies this.
type Embedder interface {
	GetOrEmbed(ctx context.Context, texts []string) ([][]float32, error)
	Stats() cache.Stats
}

// SyncResult summarizes one ingestion run.
type SyncResult struct {
	RunID         string
	PagesSynced   int
	PagesFailed   int
	ChunksIndexed int
	Duration      time.Duration
}

// CacheReport carries per-layer cache statistics for the stats command.
type CacheReport struct {
	Documents  cache.Stats `json:"documents"`
	Embeddings cache.Stats `json:"embeddings"`
}

// Pipeline wires the source, the two cache layers, the splitter, and the
// vector store. It holds no state of its own and is safe for concurrent use
// as long as its dependencies are.
type Pipeline struct {
	source   Source
	docs     DocumentCache
	embedder Embedder
	store    vector.Store
	splitter *chunk.Splitter
	logger   *slog.Logger
}

// New creates a pipeline over initialized dependencies.
func New(source Source, docs DocumentCache, embedder Embedder, store vector.Store, splitter *chunk.Splitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		docs:     docs,
		embedder: embedder,
		store:    store,
		splitter: splitter,
		logger:   logger,
	}
}

// Sync runs one full ingestion pass. Individual page failures are logged
// and counted, not fatal; the run continues with the remaining pages.
// Context cancellation stops the run between pages.
func (p *Pipeline) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{RunID: uuid.NewString()}

	pages, err := p.source.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	p.logger.Info("sync started", "run_id", result.RunID, "pages", len(pages))

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("sync interrupted: %w", err)
		}

		indexed, err := p.syncPage(ctx, page)
		if err != nil {
			result.PagesFailed++
			p.logger.Warn("page sync failed",
				"run_id", result.RunID,
				"page_id", page.ID,
				"title", page.Title,
				"error", err)
			continue
		}

		result.PagesSynced++
		result.ChunksIndexed += indexed
	}

	result.Duration = time.Since(start)
	p.logger.Info("sync finished",
		"run_id", result.RunID,
		"synced", result.PagesSynced,
		"failed", result.PagesFailed,
		"chunks", result.ChunksIndexed,
		"duration", result.Duration)

	return result, nil
}

// syncPage resolves one page through both cache layers and indexes it.
// Returns the number of chunks indexed.
func (p *Pipeline) syncPage(ctx context.Context, page Page) (int, error) {
	chunks, err := p.docs.GetOrLoad(ctx, page.ID, page.Fingerprint, p.source, p.splitter)
	if err != nil {
		return 0, fmt.Errorf("resolving document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := p.embedder.GetOrEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	now := time.Now()
	docs := make([]vector.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = vector.Document{
			ID:        chunkDocID(page.ID, ch.Index),
			Content:   ch.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"page_id":     page.ID,
				"title":       page.Title,
				"url":         page.URL,
				"chunk_index": fmt.Sprintf("%d", ch.Index),
			},
			CreatedAt: now,
		}
	}

	if err := p.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("indexing chunks: %w", err)
	}

	return len(docs), nil
}

// chunkDocID builds the stable per-chunk identifier. Re-syncing a page
// upserts over the same IDs.
func chunkDocID(pageID string, index int) string {
	return fmt.Sprintf("%s#%04d", pageID, index)
}

// Query embeds the query text and returns the topK most similar chunks.
// The query passes through the embedding cache, so repeated queries cost
// one upstream call.
func (p *Pipeline) Query(ctx context.Context, query string, topK int) ([]vector.Result, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}

	vectors, err := p.embedder.GetOrEmbed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := p.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	return results, nil
}

// CacheStats reports hit/miss/eviction counters for both cache layers.
func (p *Pipeline) CacheStats() CacheReport {
	return CacheReport{
		Documents:  p.docs.Stats(),
		Embeddings: p.embedder.Stats(),
	}
}
