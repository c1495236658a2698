// Package app provides application initialization and dependency injection.
//
// App is the container that wires the configured AI provider, the two cache
// layers, the vector store, and the pipeline. Setup builds everything from
// config; Close tears it down in reverse order, flushing cache snapshots.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signal23/signal23-ai/internal/config"
	"github.com/signal23/signal23-ai/internal/document"
	"github.com/signal23/signal23-ai/internal/embedding"
	"github.com/signal23/signal23-ai/internal/pipeline"
	"github.com/signal23/signal23-ai/internal/vector"
)

// App is the core application container.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder ai.Embedder

	// DBPool is nil for the memory backend.
	DBPool *pgxpool.Pool

	Docs     *document.Cache
	Embeds   *embedding.Cache
	Store    vector.Store
	Pipeline *pipeline.Pipeline

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	sweepers sync.WaitGroup
}

// Close gracefully shuts down all resources: stops the sweepers, flushes
// both cache snapshots, and closes the store and database pool.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	// Stop sweepers first; each does a final flush on cancellation
	a.cancel()
	a.sweepers.Wait()

	// Close releases the snapshot file locks
	a.Docs.Close()
	a.Embeds.Close()

	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("closing vector store", "error", err)
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}

	return nil
}
