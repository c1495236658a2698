// Package vector abstracts the vector index behind a single capability
// interface so the ingestion and retrieval pipeline never depends on a
// concrete backend. Two variants exist: a PostgreSQL + pgvector store for
// durable deployments and an in-memory chromem-go store for local runs and
// tests. The variant is selected once at startup by configuration.
package vector

import (
	"context"
	"errors"
	"time"
)

// Backend identifiers used in configuration.
const (
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"
)

// VectorDimension is the embedding width the schema is provisioned for.
// gemini-embedding-001 supports truncation to 768 via OutputDimensionality.
const VectorDimension = 768

// ErrUnknownBackend indicates an unrecognized backend name in configuration.
var ErrUnknownBackend = errors.New("unknown vector store backend")

// Document is one chunk+vector pair submitted for indexing.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result is a single similarity-search hit.
type Result struct {
	Document   Document
	Similarity float32 // cosine similarity, higher is closer
}

// Store is the capability interface the pipeline consumes. Implementations
// must be safe for concurrent use.
type Store interface {
	// Add indexes the given chunk+vector pairs, replacing any prior
	// documents with the same IDs.
	Add(ctx context.Context, docs []Document) error

	// Search returns the topK documents most similar to the query vector,
	// ordered by descending similarity.
	Search(ctx context.Context, query []float32, topK int) ([]Result, error)

	// Delete removes one document by ID. Deleting an absent ID is not an
	// error.
	Delete(ctx context.Context, docID string) error

	// Close releases backend resources.
	Close() error
}
