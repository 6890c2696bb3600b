package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BITBUCKET_WORKSPACE", "acme")
	t.Setenv("BITBUCKET_USERNAME", "reporter")
	t.Setenv("BITBUCKET_APP_PASSWORD", "app-password")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workspace != "acme" {
		t.Errorf("workspace = %q, want acme", cfg.Workspace)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("rate limit = %v, want 10", cfg.RateLimit)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.MaxElapsed != 300*time.Second {
		t.Errorf("max elapsed = %v, want 300s", cfg.MaxElapsed)
	}
	if cfg.Workers != 5 || cfg.ChunkSize != 20 {
		t.Errorf("workers/chunk = %d/%d, want 5/20", cfg.Workers, cfg.ChunkSize)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("cache ttl = %v, want 24h", cfg.CacheTTL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.RedisURL != "" {
		t.Errorf("redis url = %q, want empty by default", cfg.RedisURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BITBUCKET_RATE_LIMIT", "2.5")
	t.Setenv("BITBUCKET_WORKERS", "3")
	t.Setenv("BITBUCKET_CHUNK_PAUSE", "250ms")
	t.Setenv("BITBUCKET_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RateLimit != 2.5 {
		t.Errorf("rate limit = %v, want 2.5", cfg.RateLimit)
	}
	if cfg.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.Workers)
	}
	if cfg.ChunkPause != 250*time.Millisecond {
		t.Errorf("chunk pause = %v, want 250ms", cfg.ChunkPause)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", cfg.RedisURL)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("BITBUCKET_WORKSPACE", "acme")
	t.Setenv("BITBUCKET_USERNAME", "")
	t.Setenv("BITBUCKET_APP_PASSWORD", "")

	if _, err := NewLoader().Load(); err == nil {
		t.Error("Load should fail without credentials")
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BITBUCKET_LOG_LEVEL", "loud")

	if _, err := NewLoader().Load(); err == nil {
		t.Error("Load should reject an unknown log level")
	}
}

func TestClientConfig_MapsSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BITBUCKET_RATE_LIMIT", "4")
	t.Setenv("BITBUCKET_CHUNK_SIZE", "10")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	clientCfg := cfg.ClientConfig(nil)
	if clientCfg.Workspace != "acme" || clientCfg.Username != "reporter" {
		t.Errorf("credentials not mapped: %q/%q", clientCfg.Workspace, clientCfg.Username)
	}
	if clientCfg.RateLimit != 4 {
		t.Errorf("rate limit = %v, want 4", clientCfg.RateLimit)
	}
	if clientCfg.ChunkSize != 10 {
		t.Errorf("chunk size = %d, want 10", clientCfg.ChunkSize)
	}
}
