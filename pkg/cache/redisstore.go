package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps cache entries in Redis, one record per key under the
// canonical key string, with the expiry window enforced both by a Redis
// TTL and by the embedded cached_at timestamp.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a RedisStore on an existing Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl, logger: logger}, nil
}

// Get returns the payload stored under key, or ErrMiss. Redis errors and
// corrupt records are logged and degrade to misses.
func (s *RedisStore) Get(ctx context.Context, key Key, validate Validator) ([]byte, error) {
	raw, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			CacheErrors.WithLabelValues("redis", "get").Inc()
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, treating as miss")
		}
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrMiss
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		CacheInvalid.WithLabelValues("redis", "corrupt").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Corrupt cache record, treating as miss")
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrMiss
	}

	if entry.Expired(s.ttl) {
		CacheInvalid.WithLabelValues("redis", "expired").Inc()
		_ = s.redis.Del(ctx, key.String()).Err()
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrMiss
	}

	if validate != nil && !validate(entry.Data) {
		CacheInvalid.WithLabelValues("redis", "rejected").Inc()
		s.logger.Warn().Str("key", key.String()).Msg("Cache payload rejected by validator, treating as miss")
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry.Data, nil
}

// Put stores payload under key with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key Key, payload []byte) error {
	entry := Entry{
		Data:     payload,
		CachedAt: time.Now(),
		Metadata: map[string]string{"endpoint": key.Endpoint},
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), raw, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
