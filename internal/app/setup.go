package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signal23/signal23-ai/db"
	"github.com/signal23/signal23-ai/internal/chunk"
	"github.com/signal23/signal23-ai/internal/config"
	"github.com/signal23/signal23-ai/internal/document"
	"github.com/signal23/signal23-ai/internal/embedding"
	"github.com/signal23/signal23-ai/internal/notion"
	"github.com/signal23/signal23-ai/internal/pipeline"
	"github.com/signal23/signal23-ai/internal/vector"
)

// ErrNotionTokenMissing indicates a sync was attempted without NOTION_TOKEN.
var ErrNotionTokenMissing = errors.New("NOTION_TOKEN not set; required for sync")

// Setup builds the full application from configuration. The returned App
// owns every resource it creates; callers must Close it.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	embedder, err := provideEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		store vector.Store
		pool  *pgxpool.Pool
	)
	switch cfg.VectorBackend {
	case config.BackendMemory:
		store, err = vector.NewMemoryStore(embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("creating memory store: %w", err)
		}
	default: // pgvector, validated in config
		pool, err = provideDBPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store = vector.NewPGStore(pool, logger)
	}

	source, err := provideSource(cfg, logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return assemble(cfg, embedder, store, pool, source, logger)
}

// assemble wires caches, splitter, and pipeline around already-built
// provider dependencies. Split out from Setup so tests can inject fakes.
func assemble(cfg *config.Config, embedder ai.Embedder, store vector.Store, pool *pgxpool.Pool, source pipeline.Source, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	docs := document.NewCache(document.Config{
		Capacity:     cfg.DocCacheCapacity,
		TTL:          cfg.DocCacheTTL,
		SnapshotPath: cfg.DocCachePath(),
	}, logger)

	embeds, err := embedding.NewCache(embedding.Config{
		Capacity:     cfg.EmbedCacheCapacity,
		TTL:          cfg.EmbedCacheTTL,
		SnapshotPath: cfg.EmbedCachePath(),
		BatchSize:    cfg.EmbedBatchSize,
		RatePerSec:   cfg.EmbedRatePerSec,
		Model:        cfg.EmbedderModel,
		Dimension:    cfg.EmbedderDimension,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	splitter, err := chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err != nil {
		return nil, fmt.Errorf("creating splitter: %w", err)
	}

	appCtx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Embedder: embedder,
		DBPool:   pool,
		Docs:     docs,
		Embeds:   embeds,
		Store:    store,
		Pipeline: pipeline.New(source, docs, embeds, store, splitter, logger),
		ctx:      appCtx,
		cancel:   cancel,
	}

	a.sweepers.Add(2)
	go func() {
		defer a.sweepers.Done()
		docs.RunSweeper(appCtx, cfg.SweepInterval)
	}()
	go func() {
		defer a.sweepers.Done()
		embeds.RunSweeper(appCtx, cfg.SweepInterval)
	}()

	return a, nil
}

// provideEmbedder initializes Genkit with the configured AI provider and
// returns the embedder it registers.
func provideEmbedder(ctx context.Context, cfg *config.Config) (ai.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit embedder registration (no auto-discovery)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder := ollama.Embedder(g, cfg.OllamaHost)
		if embedder == nil {
			return nil, fmt.Errorf("embedder %q not found for provider ollama", cfg.EmbedderModel)
		}
		return embedder, nil

	default: // gemini, validated in config
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		if embedder == nil {
			return nil, fmt.Errorf("embedder %q not found for provider gemini", cfg.EmbedderModel)
		}
		return embedder, nil
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideSource builds the Notion-backed page source. Without a token the
// source fails on first use, so query-only runs work untokened.
func provideSource(cfg *config.Config, logger *slog.Logger) (pipeline.Source, error) {
	if cfg.NotionToken == "" {
		return errorSource{}, nil
	}

	client, err := notion.NewClient(cfg.NotionToken, logger)
	if err != nil {
		return nil, fmt.Errorf("creating notion client: %w", err)
	}
	return pipeline.NewNotionSource(notion.NewLoader(client)), nil
}

// errorSource stands in when no Notion token is configured.
type errorSource struct{}

func (errorSource) ListPages(context.Context) ([]pipeline.Page, error) {
	return nil, ErrNotionTokenMissing
}

func (errorSource) Load(context.Context, string) (document.Raw, error) {
	return document.Raw{}, ErrNotionTokenMissing
}
