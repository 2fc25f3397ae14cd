// Package cli implements the dfcache command-line interface using
// Cobra. Each subcommand mirrors the HTTP surface for local use.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dfcache",
	Short: "dfcache — a tabular dataset cache and query dispatcher",
	Long: `dfcache caches tabular datasets in memory behind an opaque
handle, and lets callers page, filter, search, and summarize them
without re-transmitting the full dataset on every request.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
