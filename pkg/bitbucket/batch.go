package bitbucket

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// GetDiffStatsBatch fetches diffstats for many commits. Tasks are
// partitioned into fixed-size chunks processed by a bounded worker pool,
// with a brief pause between chunks: sustained full concurrency against a
// rate-limited upstream triggers cascading 429s faster than the gate can
// adapt. The result slice always has exactly one entry per input commit,
// in completion order; individual failures never abort the batch.
func (c *Client) GetDiffStatsBatch(ctx context.Context, repoSlug string, commits []Commit) []BatchResult {
	results := make([]BatchResult, 0, len(commits))
	if len(commits) == 0 {
		return results
	}

	start := time.Now()
	c.logger.Info().
		Str("repo", repoSlug).
		Int("tasks", len(commits)).
		Int("workers", c.config.Workers).
		Int("chunk_size", c.config.ChunkSize).
		Msg("Starting batch diffstat fetch")

	for offset := 0; offset < len(commits); offset += c.config.ChunkSize {
		end := offset + c.config.ChunkSize
		if end > len(commits) {
			end = len(commits)
		}
		chunk := commits[offset:end]

		ch := make(chan BatchResult, len(chunk))
		var g errgroup.Group
		g.SetLimit(c.config.Workers)

		for _, commit := range chunk {
			commit := commit
			g.Go(func() error {
				ch <- c.diffStatTask(ctx, repoSlug, commit)
				return nil
			})
		}

		// Workers never return errors; failures are carried in results.
		_ = g.Wait()
		close(ch)

		for result := range ch {
			results = append(results, result)
		}

		c.logger.Info().
			Str("repo", repoSlug).
			Int("done", len(results)).
			Int("total", len(commits)).
			Msg("Batch progress")

		if end < len(commits) && c.config.ChunkPause > 0 {
			if err := sleepCtx(ctx, c.config.ChunkPause); err != nil {
				// Remaining tasks proceed and fail fast under the
				// expired context, each still yielding a result.
				c.logger.Warn().Msg("Context expired during chunk pause")
			}
		}
	}

	c.logger.Info().
		Str("repo", repoSlug).
		Int("tasks", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Batch diffstat fetch complete")

	return results
}

// diffStatTask resolves one commit's diffstat. Every failure mode ends in
// a failed BatchResult with a zeroed DiffStat, never a propagated error.
func (c *Client) diffStatTask(ctx context.Context, repoSlug string, commit Commit) BatchResult {
	if commit.Hash == "" {
		batchTasksTotal.WithLabelValues("failed").Inc()
		return BatchResult{Err: "commit has no hash"}
	}

	slug := repoSlug
	if slug == "" {
		slug = commit.Repository
	}
	if slug == "" {
		batchTasksTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().Str("commit", shortHash(commit.Hash)).Msg("Cannot determine owning repository")
		return BatchResult{CommitHash: commit.Hash, Err: "cannot determine owning repository"}
	}

	ds, fromCache, err := c.diffStat(ctx, slug, commit.Hash)
	if err != nil {
		batchTasksTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().
			Err(err).
			Str("repo", slug).
			Str("commit", shortHash(commit.Hash)).
			Msg("Diffstat task failed")
		return BatchResult{CommitHash: commit.Hash, Err: err.Error()}
	}

	if fromCache {
		batchTasksTotal.WithLabelValues("cache").Inc()
	} else {
		batchTasksTotal.WithLabelValues("network").Inc()
	}

	return BatchResult{
		CommitHash: commit.Hash,
		DiffStat:   ds,
		OK:         true,
		FromCache:  fromCache,
	}
}
