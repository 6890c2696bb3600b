// Package metrics provides the centralized Prometheus metrics registry for
// the collector. All metrics are defined in their respective packages
// (bitbucket, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the collector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bbstats_request_rate_limit (Gauge): Current requests-per-second ceiling
//   - bbstats_rate_adaptations_total (Counter): Downward rate adaptations after 429 responses
//
// Cache Metrics (pkg/cache):
//   - bbstats_cache_hits_total{backend} (Counter): Cache hits by backend
//   - bbstats_cache_misses_total{backend} (Counter): Cache misses by backend
//   - bbstats_cache_invalid_total{backend, reason} (Counter): Entries discarded at read time
//     (corrupt, expired, rejected)
//   - bbstats_cache_errors_total{backend, operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/bitbucket):
//   - bbstats_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - bbstats_request_duration_seconds{endpoint} (Histogram): Logical fetch duration by endpoint
//   - bbstats_errors_total{class} (Counter): Errors by class (auth, client, server, rate_limit, network)
//   - bbstats_rate_limit_waits_total (Counter): Mandatory waits served on 429 responses
//
// Retry Metrics (pkg/bitbucket):
//   - bbstats_retries_total{class} (Counter): Retry attempts by error class
//   - bbstats_retry_exhausted_total{class} (Counter): Fetches that spent the transient retry budget
//
// Batch Metrics (pkg/bitbucket):
//   - bbstats_batch_tasks_total{outcome} (Counter): Batch diffstat tasks by outcome (cache, network, failed)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(bbstats_cache_hits_total[5m])) /
//   (sum(rate(bbstats_cache_hits_total[5m])) + sum(rate(bbstats_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(bbstats_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(bbstats_request_duration_seconds_bucket[5m]))
//
//   # Effective Request Rate vs Ceiling
//   rate(bbstats_requests_total[5m]) and bbstats_request_rate_limit
