// Package bitbucket provides the core Bitbucket API client with adaptive
// rate limiting, response caching, retries, and concurrent batch fetching.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nfriedli/bitbucket-stats/pkg/cache"
	"github.com/nfriedli/bitbucket-stats/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Bitbucket Cloud REST API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root (override for testing).
	BaseURL string

	// Workspace is the account/organization namespace to collect from.
	Workspace string

	// HTTP Basic credentials.
	Username    string
	AppPassword string

	// Rate limiting.
	RateLimit       float64 // requests per second ceiling
	MinRateLimit    float64 // floor for downward adaptation
	RateAdaptFactor float64 // multiplier applied on 429 responses

	// Retry budget for transient failures.
	MaxAttempts    int           // attempt cap, including the first request
	InitialBackoff time.Duration // first backoff delay, doubled per attempt
	MaxElapsed     time.Duration // total elapsed time cap per logical fetch

	// RateLimitWait is the wait applied to a 429 response carrying no
	// Retry-After hint.
	RateLimitWait time.Duration

	// Batch fetching.
	Workers    int           // worker pool size per chunk
	ChunkSize  int           // tasks per chunk
	ChunkPause time.Duration // pause between chunks

	// Store caches fetched payloads. Required.
	Store cache.Store

	// HTTPClient overrides the default HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration for a workspace.
func DefaultConfig(workspace, username, appPassword string, store cache.Store) Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Workspace:       workspace,
		Username:        username,
		AppPassword:     appPassword,
		RateLimit:       10,
		MinRateLimit:    ratelimit.DefaultMinRate,
		RateAdaptFactor: ratelimit.DefaultAdaptFactor,
		MaxAttempts:     5,
		InitialBackoff:  1 * time.Second,
		MaxElapsed:      300 * time.Second,
		RateLimitWait:   30 * time.Second,
		Workers:         5,
		ChunkSize:       20,
		ChunkPause:      1 * time.Second,
		Store:           store,
	}
}

// Client is the Bitbucket API client façade. One Client owns one rate
// gate; the gate's state is the only mutable state shared across
// concurrent batch workers.
type Client struct {
	httpClient *http.Client
	gate       *ratelimit.Gate
	store      cache.Store
	config     Config
	logger     zerolog.Logger
}

// New creates a new Bitbucket client.
func New(cfg Config) (*Client, error) {
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Username == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("username and app password are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 300 * time.Second
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 20
	}

	logger := log.With().Str("component", "bitbucket-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	gate := ratelimit.NewGateWithAdaptation(cfg.RateLimit, cfg.MinRateLimit, cfg.RateAdaptFactor, logger)

	return &Client{
		httpClient: httpClient,
		gate:       gate,
		store:      cfg.Store,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Gate exposes the client's rate gate (for testing).
func (c *Client) Gate() *ratelimit.Gate {
	return c.gate
}

// URL templates for the consumed REST surface.

func (c *Client) repositoriesURL() string {
	return fmt.Sprintf("%s/repositories/%s", c.config.BaseURL, c.config.Workspace)
}

func (c *Client) commitsURL(repoSlug string) string {
	return fmt.Sprintf("%s/repositories/%s/%s/commits", c.config.BaseURL, c.config.Workspace, repoSlug)
}

func (c *Client) pullRequestsURL(repoSlug string) string {
	return fmt.Sprintf("%s/repositories/%s/%s/pullrequests", c.config.BaseURL, c.config.Workspace, repoSlug)
}

func (c *Client) diffStatURL(repoSlug, commitHash string) string {
	return fmt.Sprintf("%s/repositories/%s/%s/diffstat/%s", c.config.BaseURL, c.config.Workspace, repoSlug, commitHash)
}

// ListRepositories fetches all repositories in the workspace. Transient
// failure degrades to an empty slice; authentication failure aborts.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	items, err := c.collectAll(ctx, c.repositoriesURL(), nil)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		c.logger.Error().Err(err).Msg("Failed to list repositories")
		return []Repository{}, nil
	}

	repos := make([]Repository, 0, len(items))
	for _, item := range items {
		var repo Repository
		if err := json.Unmarshal(item, &repo); err != nil {
			c.logger.Warn().Err(err).Msg("Skipping malformed repository record")
			continue
		}
		repos = append(repos, repo)
	}

	c.logger.Info().Int("count", len(repos)).Msg("Retrieved repositories")
	return repos, nil
}

// ListCommits fetches all commits of a repository, newest first as
// returned by the API. Transient failure degrades to an empty slice;
// authentication failure aborts.
func (c *Client) ListCommits(ctx context.Context, repoSlug string) ([]Commit, error) {
	items, err := c.collectAll(ctx, c.commitsURL(repoSlug), nil)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		c.logger.Error().Err(err).Str("repo", repoSlug).Msg("Failed to list commits")
		return []Commit{}, nil
	}

	commits := make([]Commit, 0, len(items))
	for _, item := range items {
		var commit Commit
		if err := json.Unmarshal(item, &commit); err != nil {
			c.logger.Warn().Err(err).Str("repo", repoSlug).Msg("Skipping malformed commit record")
			continue
		}
		if commit.Repository == "" {
			commit.Repository = repoSlug
		}
		commits = append(commits, commit)
	}

	c.logger.Info().Int("count", len(commits)).Str("repo", repoSlug).Msg("Retrieved commits")
	return commits, nil
}

// ListPullRequests fetches the repository's pull requests created within
// the given year, across all lifecycle states. Transient failure degrades
// to an empty slice; authentication failure aborts.
func (c *Client) ListPullRequests(ctx context.Context, repoSlug string, year int) ([]PullRequest, error) {
	params := url.Values{
		"q": []string{fmt.Sprintf("created_on >= %d-01-01 AND created_on < %d-01-01", year, year+1)},
		"state": []string{
			string(PRStateMerged),
			string(PRStateOpen),
			string(PRStateDeclined),
		},
	}

	items, err := c.collectAll(ctx, c.pullRequestsURL(repoSlug), params)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		c.logger.Error().Err(err).Str("repo", repoSlug).Msg("Failed to list pull requests")
		return []PullRequest{}, nil
	}

	prs := make([]PullRequest, 0, len(items))
	for _, item := range items {
		var pr PullRequest
		if err := json.Unmarshal(item, &pr); err != nil {
			c.logger.Warn().Err(err).Str("repo", repoSlug).Msg("Skipping malformed pull request record")
			continue
		}
		prs = append(prs, pr)
	}

	c.logger.Info().Int("count", len(prs)).Str("repo", repoSlug).Int("year", year).Msg("Retrieved pull requests")
	return prs, nil
}

// GetDiffStat fetches the diffstat for one commit, consulting the cache
// first.
func (c *Client) GetDiffStat(ctx context.Context, repoSlug, commitHash string) (DiffStat, error) {
	ds, _, err := c.diffStat(ctx, repoSlug, commitHash)
	return ds, err
}

// diffStat is the shared single-commit path used by GetDiffStat and the
// batch fetcher. The boolean reports whether the result came from cache.
func (c *Client) diffStat(ctx context.Context, repoSlug, commitHash string) (DiffStat, bool, error) {
	rawURL := c.diffStatURL(repoSlug, commitHash)
	u, err := url.Parse(rawURL)
	if err != nil {
		return DiffStat{}, false, fmt.Errorf("parse diffstat url: %w", err)
	}
	key := cache.Key{Endpoint: u.Path}

	if payload, err := c.store.Get(ctx, key, ValidDiffStat); err == nil {
		ds, err := ParseDiffStat(payload)
		if err == nil {
			c.logger.Debug().Str("commit", shortHash(commitHash)).Msg("Diffstat cache hit")
			return ds, true, nil
		}
	}

	body, err := c.fetch(ctx, rawURL, nil)
	if err != nil {
		return DiffStat{}, false, err
	}

	ds, err := ParseDiffStat(body)
	if err != nil {
		return DiffStat{}, false, err
	}

	if err := c.store.Put(ctx, key, body); err != nil {
		c.logger.Warn().Err(err).Str("commit", shortHash(commitHash)).Msg("Failed to cache diffstat")
	}

	return ds, false, nil
}

// shortHash abbreviates a commit hash for log output.
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
