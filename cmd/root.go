// Package cmd implements the signal23 CLI: sync, query, stats, version.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/signal23/signal23-ai/internal/app"
	"github.com/signal23/signal23-ai/internal/config"
	"github.com/signal23/signal23-ai/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "signal23",
	Short: "signal23 - Notion-backed retrieval pipeline",
	Long: `signal23 ingests Notion pages into a vector index through a two-layer
cache (documents and embeddings), then answers similarity queries against it.

Typical flow:

  export NOTION_TOKEN=...  GEMINI_API_KEY=...
  signal23 sync      # pull pages, chunk, embed, index
  signal23 query "how do we rotate credentials?"
  signal23 stats     # cache hit rates`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG env enables debug level.
func newLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

// setupApp loads configuration and builds the application container.
// Callers own the returned App and must Close it.
func setupApp(ctx context.Context) (*app.App, error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
