package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var topK int

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search the index for chunks similar to the question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "number of results (default from config)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	k := topK
	if k <= 0 {
		k = a.Config.SearchTopK
	}

	question := strings.Join(args, " ")
	results, err := a.Pipeline.Query(ctx, question, k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results. Run `signal23 sync` first?")
		return nil
	}

	for i, r := range results {
		title := r.Document.Metadata["title"]
		if title == "" {
			title = r.Document.ID
		}
		fmt.Fprintf(out, "%d. %s (similarity %.3f)\n", i+1, title, r.Similarity)
		if url := r.Document.Metadata["url"]; url != "" {
			fmt.Fprintf(out, "   %s\n", url)
		}
		fmt.Fprintf(out, "   %s\n\n", snippet(r.Document.Content, 200))
	}
	return nil
}

// snippet truncates content to limit runes on a rune boundary.
func snippet(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "…"
}
