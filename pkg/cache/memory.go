package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryEntry pairs a payload with its fetch time so the expiry window is
// enforced the same way as in the persistent stores.
type memoryEntry struct {
	payload  []byte
	cachedAt time.Time
}

// Memory is a bounded in-process cache layer. It is primarily used in
// front of a persistent store (see Tiered) to avoid re-reading the same
// record many times within one run.
type Memory struct {
	lru *lru.Cache[string, memoryEntry]
	ttl time.Duration
}

// NewMemory creates a Memory store holding at most size entries.
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	l, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: l, ttl: ttl}, nil
}

// Get returns the payload stored under key, or ErrMiss.
func (m *Memory) Get(ctx context.Context, key Key, validate Validator) ([]byte, error) {
	e, ok := m.lru.Get(key.String())
	if !ok || time.Since(e.cachedAt) > m.ttl {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrMiss
	}
	if validate != nil && !validate(e.payload) {
		CacheInvalid.WithLabelValues("memory", "rejected").Inc()
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrMiss
	}
	CacheHits.WithLabelValues("memory").Inc()
	return e.payload, nil
}

// Put stores payload under key. Never fails; the LRU evicts as needed.
func (m *Memory) Put(ctx context.Context, key Key, payload []byte) error {
	m.lru.Add(key.String(), memoryEntry{payload: payload, cachedAt: time.Now()})
	return nil
}
