package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// FileStore persists one JSON record per cache key in a local directory.
// Records are opaque to everything except this store.
type FileStore struct {
	dir    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// if needed. An unwritable cache directory is a fatal condition: no
// subsequent fetch could cache anything either.
func NewFileStore(dir string, ttl time.Duration, logger zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileStore{dir: dir, ttl: ttl, logger: logger}, nil
}

// Get returns the payload stored under key, or ErrMiss. Unreadable and
// corrupt records are logged and reported as misses, never as errors.
func (s *FileStore) Get(ctx context.Context, key Key, validate Validator) ([]byte, error) {
	path := filepath.Join(s.dir, key.Filename())

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			CacheErrors.WithLabelValues("file", "get").Inc()
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, treating as miss")
		}
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		CacheInvalid.WithLabelValues("file", "corrupt").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Corrupt cache record, treating as miss")
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	if entry.Expired(s.ttl) {
		CacheInvalid.WithLabelValues("file", "expired").Inc()
		_ = os.Remove(path)
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	if validate != nil && !validate(entry.Data) {
		CacheInvalid.WithLabelValues("file", "rejected").Inc()
		s.logger.Warn().Str("key", key.String()).Msg("Cache payload rejected by validator, treating as miss")
		CacheMisses.WithLabelValues("file").Inc()
		return nil, ErrMiss
	}

	CacheHits.WithLabelValues("file").Inc()
	return entry.Data, nil
}

// Put stores payload under key. The record is written to a temporary file
// and renamed, so concurrent writes to distinct keys never corrupt each
// other and a reader never observes a partial record.
func (s *FileStore) Put(ctx context.Context, key Key, payload []byte) error {
	entry := Entry{
		Data:     payload,
		CachedAt: time.Now(),
		Metadata: map[string]string{"endpoint": key.Endpoint},
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	path := filepath.Join(s.dir, key.Filename())
	tmp, err := os.CreateTemp(s.dir, "entry-*.tmp")
	if err != nil {
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("create cache temp file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("close cache temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		CacheErrors.WithLabelValues("file", "put").Inc()
		return fmt.Errorf("store cache entry: %w", err)
	}

	return nil
}
