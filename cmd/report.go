package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfriedli/bitbucket-stats/pkg/logging"
	"github.com/nfriedli/bitbucket-stats/pkg/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Recompute aggregates from previously collected CSV files",
	Long: `Reads commits.csv and diffstats.csv from a previous collection run
and rewrites the aggregate views (monthly, repository, and author
activity) without any network access.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("output-dir", "output", "Directory holding the collected CSV files")
}

func runReport(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")

	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{Level: level, Pretty: true, Output: os.Stderr})
	logger := logging.NewLogger("report")

	dataset, err := report.Load(outputDir)
	if err != nil {
		return fmt.Errorf("load collected data (run collect first?): %w", err)
	}
	logger.Info().
		Int("commits", len(dataset.Commits)).
		Int("diffstats", len(dataset.DiffStats)).
		Msg("Loaded collected data")

	if err := dataset.WriteAll(outputDir); err != nil {
		return err
	}

	summary := dataset.Summarize()
	logger.Info().
		Int("repositories", summary.Repositories).
		Int("commits", summary.Commits).
		Int("lines_added", summary.LinesAdded).
		Int("lines_removed", summary.LinesRemoved).
		Float64("mean_commits_per_month", summary.MeanCommitsPerMonth).
		Float64("median_commits_per_month", summary.MedianCommitsPerMonth).
		Str("output_dir", outputDir).
		Msg("Aggregates written")

	return nil
}
