package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend (memory, file, redis).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbstats_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses by backend.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbstats_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors by backend and operation.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbstats_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // operation: "get", "put"
	)

	// CacheInvalid tracks entries rejected at read time (corrupt record,
	// expired entry, validator rejection). These surface as misses.
	CacheInvalid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bbstats_cache_invalid_total",
			Help: "Total number of cache entries discarded at read time",
		},
		[]string{"backend", "reason"}, // reason: "corrupt", "expired", "rejected"
	)
)
