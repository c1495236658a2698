package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgQuerier is the subset of pgxpool.Pool the store needs. Defined by the
// consumer so tests can substitute a fake without a database.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore indexes chunks in PostgreSQL with the pgvector extension.
// The chunks table is created by the embedded migrations in db/.
type PGStore struct {
	db     pgQuerier
	pool   *pgxpool.Pool // retained for Close; nil when constructed from a bare querier
	logger *slog.Logger
}

// NewPGStore creates a pgvector-backed store on an existing pool. The pool's
// lifetime passes to the store; Close drains it.
func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{
		db:     pool,
		pool:   pool,
		logger: logger.With("component", "pgvector_store"),
	}
}

// newPGStoreWithQuerier is the test seam.
func newPGStoreWithQuerier(db pgQuerier, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, logger: logger.With("component", "pgvector_store")}
}

const upsertChunkSQL = `
INSERT INTO chunks (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    created_at = EXCLUDED.created_at`

const searchChunksSQL = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

const deleteChunkSQL = `DELETE FROM chunks WHERE id = $1`

// Add upserts each document. A partial failure stops and reports which
// document failed; already-written documents stay indexed (re-ingestion is
// idempotent thanks to the upsert).
func (s *PGStore) Add(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document with empty ID")
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %q has no embedding", doc.ID)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		embedding := pgvector.NewVector(doc.Embedding)
		createdAt := pgtype.Timestamptz{Time: doc.CreatedAt, Valid: !doc.CreatedAt.IsZero()}

		if _, err := s.db.Exec(ctx, upsertChunkSQL,
			doc.ID, doc.Content, embedding, metadataJSON, createdAt); err != nil {
			return fmt.Errorf("upserting chunk %q: %w", doc.ID, err)
		}
	}

	s.logger.Debug("indexed chunks", "count", len(docs))
	return nil
}

// Search runs a cosine-distance query ordered by similarity.
func (s *PGStore) Search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	queryVec := pgvector.NewVector(query)
	rows, err := s.db.Query(ctx, searchChunksSQL, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			createdAt    pgtype.Timestamptz
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &createdAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
				s.logger.Warn("skipping unparseable chunk metadata", "chunk_id", doc.ID, "error", err)
				doc.Metadata = nil
			}
		}
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time
		}

		results = append(results, Result{Document: doc, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return results, nil
}

// Delete removes one chunk by ID.
func (s *PGStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.db.Exec(ctx, deleteChunkSQL, docID); err != nil {
		return fmt.Errorf("deleting chunk %q: %w", docID, err)
	}
	return nil
}

// Close drains the connection pool.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
