package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "signal23 %s\n", AppVersion)
	fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

	// Check API key presence without displaying it
	if os.Getenv("GEMINI_API_KEY") != "" {
		fmt.Fprintln(out, "GEMINI_API_KEY: configured")
	} else {
		fmt.Fprintln(out, "GEMINI_API_KEY: not set")
	}
	return nil
}
