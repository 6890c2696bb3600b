// Package cmd contains all the CLI commands for the collector, built
// using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bitbucket-stats",
	Short: "Collect and aggregate Bitbucket workspace activity statistics",
	Long: `bitbucket-stats collects commits, pull requests, and line-change
statistics from every repository of a Bitbucket workspace, caches API
responses locally, and writes per-month, per-repository, and per-author
activity aggregates as CSV files.

Credentials are read from the environment:
  BITBUCKET_WORKSPACE, BITBUCKET_USERNAME, BITBUCKET_APP_PASSWORD`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
