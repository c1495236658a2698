package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"
)

// NewEmbeddingFunc creates a chromem-go EmbeddingFunc from a Genkit
// ai.Embedder. The in-memory store normally receives precomputed vectors
// from the embedding cache, so this bridge only runs for documents added
// without one.
//
// Note: chromem-go normalizes vectors itself, no manual normalization here.
func NewEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return resp.Embeddings[0].Embedding, nil
	}
}

// MemoryStore is the in-process FAISS-like backend, backed by chromem-go.
// It holds the whole index in memory; state does not survive restarts.
type MemoryStore struct {
	collection *chromem.Collection
	logger     *slog.Logger
}

// NewMemoryStore creates an in-memory store. embedder backs the fallback
// embedding function for documents added without a precomputed vector.
func NewMemoryStore(embedder ai.Embedder, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("chunks", nil, NewEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}

	return &MemoryStore{
		collection: collection,
		logger:     logger.With("component", "memory_store"),
	}, nil
}

// Add indexes the given chunk+vector pairs.
func (s *MemoryStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	converted := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document with empty ID")
		}
		converted = append(converted, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		})
	}

	if err := s.collection.AddDocuments(ctx, converted, 1); err != nil {
		return fmt.Errorf("adding documents to memory store: %w", err)
	}

	s.logger.Debug("indexed chunks", "count", len(docs))
	return nil
}

// Search returns the topK most similar documents. topK is clamped to the
// collection size since chromem rejects oversized result requests.
func (s *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	hits, err := s.collection.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory store search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Document: Document{
				ID:        hit.ID,
				Content:   hit.Content,
				Embedding: hit.Embedding,
				Metadata:  hit.Metadata,
			},
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// Delete removes one document by ID. Absent IDs are ignored.
func (s *MemoryStore) Delete(ctx context.Context, docID string) error {
	if err := s.collection.Delete(ctx, nil, nil, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	return nil
}

// Close is a no-op; the index lives and dies with the process.
func (*MemoryStore) Close() error { return nil }
