package bitbucket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for Bitbucket client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbstats_requests_total",
		Help: "Total Bitbucket requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bbstats_request_duration_seconds",
		Help:    "Bitbucket request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbstats_errors_total",
		Help: "Total Bitbucket errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbstats_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbstats_retry_exhausted_total",
		Help: "Total number of times the retry budget was exhausted by error class",
	}, []string{"class"})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bbstats_rate_limit_waits_total",
		Help: "Total number of mandatory waits after 429 responses",
	})

	batchTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bbstats_batch_tasks_total",
		Help: "Total batch diffstat tasks by outcome (cache, network, failed)",
	}, []string{"outcome"})
)
