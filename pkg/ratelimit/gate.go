// Package ratelimit implements adaptive client-side request pacing for the
// Bitbucket API. A Gate enforces a minimum interval between requests and
// lowers the request rate whenever the server signals overload.
package ratelimit

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate gate behavior.
var (
	rateAdaptationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bbstats_rate_adaptations_total",
		Help: "Total number of downward rate adaptations after server overload signals",
	})

	currentRateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bbstats_request_rate_limit",
		Help: "Current requests-per-second ceiling enforced by the rate gate",
	})
)

// Default adaptation parameters.
const (
	// DefaultAdaptFactor multiplies the current rate on each Lower call.
	DefaultAdaptFactor = 0.8

	// DefaultMinRate is the floor below which the rate is never lowered.
	DefaultMinRate = 0.1
)

// Gate serializes outgoing requests against a requests-per-second ceiling.
// The rate starts at a configured value and can only be lowered within a
// run. Gate is safe for concurrent use by multiple workers.
type Gate struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	current float64
	min     float64
	factor  float64

	logger zerolog.Logger
}

// NewGate creates a Gate enforcing at most rps requests per second with
// default adaptation parameters.
func NewGate(rps float64, logger zerolog.Logger) *Gate {
	return NewGateWithAdaptation(rps, DefaultMinRate, DefaultAdaptFactor, logger)
}

// NewGateWithAdaptation creates a Gate with explicit floor and adaptation
// factor. A burst of one token yields a minimum inter-request interval of
// 1/rps seconds.
func NewGateWithAdaptation(rps, minRate, factor float64, logger zerolog.Logger) *Gate {
	if rps <= 0 {
		rps = 1
	}
	if minRate <= 0 || minRate > rps {
		minRate = DefaultMinRate
	}
	if factor <= 0 || factor >= 1 {
		factor = DefaultAdaptFactor
	}
	currentRateGauge.Set(rps)
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		current: rps,
		min:     minRate,
		factor:  factor,
		logger:  logger,
	}
}

// Wait blocks until the next request may be issued. The underlying token
// bucket computes the delay under its own lock, so concurrent callers
// never base their wait on a torn read, and no lock is held while
// sleeping. Returns the context error if ctx expires first.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Lower reduces the current rate by the adaptation factor, floored at the
// minimum rate, and returns the new rate. The rate is never raised.
func (g *Gate) Lower() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	lowered := g.current * g.factor
	if lowered < g.min {
		lowered = g.min
	}
	if lowered >= g.current {
		return g.current
	}

	g.current = lowered
	g.limiter.SetLimit(rate.Limit(lowered))
	rateAdaptationsTotal.Inc()
	currentRateGauge.Set(lowered)

	g.logger.Warn().
		Float64("rate", lowered).
		Msg("Lowered request rate after server overload signal")

	return lowered
}

// Rate returns the current requests-per-second ceiling.
func (g *Gate) Rate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}
