package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nfriedli/bitbucket-stats/pkg/bitbucket"
	"github.com/nfriedli/bitbucket-stats/pkg/cache"
	"github.com/nfriedli/bitbucket-stats/pkg/config"
	"github.com/nfriedli/bitbucket-stats/pkg/logging"
	"github.com/nfriedli/bitbucket-stats/pkg/report"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch workspace activity and write CSV aggregates",
	Long: `Fetches all repositories of the configured workspace, their commits
(filtered to the requested year), pull requests, and per-commit line
changes, then writes raw records and aggregate views as CSV files.

Already-fetched API responses are served from the local cache, so an
interrupted run can be resumed cheaply.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().Int("year", time.Now().Year(), "Year to collect statistics for")
	collectCmd.Flags().String("output-dir", "output", "Directory for CSV output")
	collectCmd.Flags().String("cache-dir", "", "Cache directory (overrides BITBUCKET_CACHE_DIR)")
	collectCmd.Flags().String("redis", "", "Redis URL for the cache backend (overrides BITBUCKET_REDIS_URL)")
	collectCmd.Flags().String("metrics-addr", "", "Address to expose Prometheus metrics on (e.g. :9090)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	redisURL, _ := cmd.Flags().GetString("redis")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")

	cfg, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}

	level := logging.LogLevel(cfg.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{Level: level, Pretty: true, Output: os.Stderr})
	logger := logging.NewLogger("collect")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Str("addr", metricsAddr).Msg("Serving Prometheus metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}

	client, err := bitbucket.New(cfg.ClientConfig(store))
	if err != nil {
		return err
	}

	logger.Info().Str("workspace", cfg.Workspace).Int("year", year).Msg("Starting collection")

	repos, err := client.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	logger.Info().Int("count", len(repos)).Msg("Found repositories")

	var dataset report.Dataset
	var pullRequests int

	for i, repo := range repos {
		logger.Info().
			Str("repo", repo.Slug).
			Int("index", i+1).
			Int("total", len(repos)).
			Msg("Processing repository")

		commits, err := client.ListCommits(ctx, repo.Slug)
		if err != nil {
			return fmt.Errorf("list commits for %s: %w", repo.Slug, err)
		}
		commits = report.FilterYear(commits, year)
		if len(commits) == 0 {
			logger.Warn().Str("repo", repo.Slug).Msg("No commits in requested year")
			continue
		}

		prs, err := client.ListPullRequests(ctx, repo.Slug, year)
		if err != nil {
			return fmt.Errorf("list pull requests for %s: %w", repo.Slug, err)
		}
		pullRequests += len(prs)

		results := client.GetDiffStatsBatch(ctx, repo.Slug, commits)
		dataset.AddRepository(repo.Slug, commits, results)

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("collection interrupted: %w", err)
		}
	}

	if err := dataset.WriteAll(outputDir); err != nil {
		return err
	}

	summary := dataset.Summarize()
	logger.Info().
		Int("repositories", summary.Repositories).
		Int("commits", summary.Commits).
		Int("pull_requests", pullRequests).
		Int("lines_added", summary.LinesAdded).
		Int("lines_removed", summary.LinesRemoved).
		Float64("mean_commits_per_month", summary.MeanCommitsPerMonth).
		Str("output_dir", outputDir).
		Msg("Collection complete")

	return nil
}

// buildStore assembles the cache: a memory layer in front of either Redis
// or the local file backend.
func buildStore(cfg config.Config, logger zerolog.Logger) (cache.Store, error) {
	memory, err := cache.NewMemory(cfg.MemoryCacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}

	var persistent cache.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		persistent, err = cache.NewRedisStore(redis.NewClient(opts), cfg.CacheTTL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("Using Redis cache backend")
	} else {
		persistent, err = cache.NewFileStore(cfg.CacheDir, cfg.CacheTTL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.CacheDir).Msg("Using file cache backend")
	}

	return cache.NewTiered(memory, persistent), nil
}
