package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signal23/signal23-ai/internal/cache"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit/miss statistics",
	Long: `Show document and embedding cache statistics.

Entries and byte sizes are restored from the on-disk snapshots and so
reflect prior runs. Hit, miss, and eviction counters are per-process:
each CLI invocation starts a fresh process, so they count only activity
within this run (use the Prometheus metrics for long-lived counters).`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("shutdown", "error", err)
		}
	}()

	report := a.Pipeline.CacheStats()
	out := cmd.OutOrStdout()

	if statsJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling stats: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "Document cache:")
	printStats(out, report.Documents)
	fmt.Fprintln(out, "Embedding cache:")
	printStats(out, report.Embeddings)
	return nil
}

func printStats(out io.Writer, s cache.Stats) {
	fmt.Fprintf(out, "  Entries:   %d (%d bytes)\n", s.Entries, s.SizeBytes)
	fmt.Fprintf(out, "  Hits:      %d\n", s.Hits)
	fmt.Fprintf(out, "  Misses:    %d\n", s.Misses)
	fmt.Fprintf(out, "  Evictions: %d\n", s.Evictions)
	fmt.Fprintf(out, "  Hit rate:  %.1f%%\n", s.HitRate*100)
}
