// Package config loads collector settings from the environment, with
// optional .env files for local runs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/nfriedli/bitbucket-stats/pkg/bitbucket"
	"github.com/nfriedli/bitbucket-stats/pkg/cache"
	"github.com/rs/zerolog/log"
)

// envPrefix makes every variable read as BITBUCKET_<FIELD>, keeping the
// credential names the collector has always used.
const envPrefix = "bitbucket"

// Config is the full environment surface of the collector.
type Config struct {
	// Credentials and target workspace.
	Workspace   string `split_words:"true" validate:"required"`
	Username    string `split_words:"true" validate:"required"`
	AppPassword string `split_words:"true" validate:"required"`

	// API endpoint (override for testing).
	BaseURL string `split_words:"true" default:"https://api.bitbucket.org/2.0"`

	// Logging.
	LogLevel string `split_words:"true" default:"info" validate:"oneof=trace debug info warn error"`

	// Rate limiting.
	RateLimit    float64 `split_words:"true" default:"10" validate:"gt=0"`
	MinRateLimit float64 `split_words:"true" default:"0.1" validate:"gt=0"`

	// Retry budget.
	MaxAttempts    int           `split_words:"true" default:"5" validate:"gt=0"`
	InitialBackoff time.Duration `split_words:"true" default:"1s" validate:"gt=0"`
	MaxElapsed     time.Duration `split_words:"true" default:"300s" validate:"gt=0"`
	RateLimitWait  time.Duration `split_words:"true" default:"30s" validate:"gt=0"`

	// Batch fetching.
	Workers    int           `split_words:"true" default:"5" validate:"gt=0"`
	ChunkSize  int           `split_words:"true" default:"20" validate:"gt=0"`
	ChunkPause time.Duration `split_words:"true" default:"1s" validate:"gte=0"`

	// Cache.
	CacheDir        string        `split_words:"true" default:".cache"`
	CacheTTL        time.Duration `split_words:"true" default:"24h" validate:"gt=0"`
	MemoryCacheSize int           `split_words:"true" default:"1000" validate:"gt=0"`

	// RedisURL selects the Redis cache backend when set; empty keeps the
	// file backend.
	RedisURL string `split_words:"true"`
}

// Loader reads and validates a Config from the process environment.
type Loader struct {
	Validate *validator.Validate
}

// NewLoader creates a config loader.
func NewLoader() *Loader {
	return &Loader{Validate: validator.New()}
}

// Load reads .env files (if present), the environment, and validates the
// result.
func (l *Loader) Load() (Config, error) {
	var cfg Config

	loadDotEnv()

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env load: %w", err)
	}
	if err := l.Validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}

	log.Debug().
		Str("workspace", cfg.Workspace).
		Str("log_level", cfg.LogLevel).
		Bool("redis", cfg.RedisURL != "").
		Msg("Configuration loaded")

	return cfg, nil
}

// ClientConfig maps the environment settings onto a client configuration
// backed by the given store.
func (c Config) ClientConfig(store cache.Store) bitbucket.Config {
	clientCfg := bitbucket.DefaultConfig(c.Workspace, c.Username, c.AppPassword, store)
	clientCfg.BaseURL = c.BaseURL
	clientCfg.RateLimit = c.RateLimit
	clientCfg.MinRateLimit = c.MinRateLimit
	clientCfg.MaxAttempts = c.MaxAttempts
	clientCfg.InitialBackoff = c.InitialBackoff
	clientCfg.MaxElapsed = c.MaxElapsed
	clientCfg.RateLimitWait = c.RateLimitWait
	clientCfg.Workers = c.Workers
	clientCfg.ChunkSize = c.ChunkSize
	clientCfg.ChunkPause = c.ChunkPause
	return clientCfg
}

func loadDotEnv() {
	files := []string{".env"}
	if appEnv := strings.TrimSpace(os.Getenv("APP_ENV")); appEnv != "" {
		files = append(files, ".env."+appEnv)
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Overload(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load dotenv file")
		}
	}
}
