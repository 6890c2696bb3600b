package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewGate_Defaults(t *testing.T) {
	gate := NewGate(10, testLogger())

	if got := gate.Rate(); got != 10 {
		t.Errorf("Rate() = %v, want 10", got)
	}
}

func TestNewGateWithAdaptation_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		min      float64
		factor   float64
		wantRate float64
	}{
		{name: "zero rps falls back to 1", rps: 0, min: 0.1, factor: 0.8, wantRate: 1},
		{name: "negative rps falls back to 1", rps: -5, min: 0.1, factor: 0.8, wantRate: 1},
		{name: "valid arguments kept", rps: 25, min: 0.5, factor: 0.5, wantRate: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGateWithAdaptation(tt.rps, tt.min, tt.factor, testLogger())
			if got := gate.Rate(); got != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestGate_Wait_EnforcesMinimumInterval(t *testing.T) {
	// 50 req/s means at least 20ms between grants.
	gate := NewGate(50, testLogger())
	ctx := context.Background()

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 15*time.Millisecond {
		t.Errorf("second grant after %v, want at least ~20ms", elapsed)
	}
}

func TestGate_Wait_ConcurrentCallersAreSpaced(t *testing.T) {
	gate := NewGate(100, testLogger())
	ctx := context.Background()

	const callers = 5
	grants := make([]time.Time, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := gate.Wait(ctx); err != nil {
				t.Errorf("Wait failed: %v", err)
				return
			}
			grants[idx] = time.Now()
		}(i)
	}
	wg.Wait()

	// 5 grants at 100 req/s need at least ~40ms end to end.
	var first, last time.Time
	for _, g := range grants {
		if g.IsZero() {
			t.Fatal("missing grant timestamp")
		}
		if first.IsZero() || g.Before(first) {
			first = g
		}
		if g.After(last) {
			last = g
		}
	}
	if spread := last.Sub(first); spread < 30*time.Millisecond {
		t.Errorf("5 concurrent grants spread over %v, want at least ~40ms", spread)
	}
}

func TestGate_Wait_ContextCancelled(t *testing.T) {
	gate := NewGate(0.5, testLogger()) // 2s between grants
	ctx := context.Background()

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if err := gate.Wait(cancelCtx); err == nil {
		t.Error("Wait should fail when context expires before the next grant")
	}
}

func TestGate_Lower_ReducesRate(t *testing.T) {
	gate := NewGateWithAdaptation(10, 0.1, 0.8, testLogger())

	got := gate.Lower()
	if got != 8 {
		t.Errorf("Lower() = %v, want 8", got)
	}
	if rate := gate.Rate(); rate != 8 {
		t.Errorf("Rate() after Lower = %v, want 8", rate)
	}
}

func TestGate_Lower_FlooredAtMinimum(t *testing.T) {
	gate := NewGateWithAdaptation(1, 0.5, 0.5, testLogger())

	if got := gate.Lower(); got != 0.5 {
		t.Errorf("first Lower() = %v, want 0.5", got)
	}
	// Already at the floor; further calls must not go below it.
	if got := gate.Lower(); got != 0.5 {
		t.Errorf("second Lower() = %v, want 0.5", got)
	}
}

func TestGate_Lower_NeverRaises(t *testing.T) {
	gate := NewGateWithAdaptation(10, 0.1, 0.8, testLogger())

	prev := gate.Rate()
	for i := 0; i < 50; i++ {
		next := gate.Lower()
		if next > prev {
			t.Fatalf("rate raised from %v to %v", prev, next)
		}
		prev = next
	}
	if prev < 0.1 {
		t.Errorf("rate %v fell below the floor", prev)
	}
}

func TestGate_Lower_ConcurrentCallers(t *testing.T) {
	gate := NewGateWithAdaptation(100, 1, 0.8, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.Lower()
		}()
	}
	wg.Wait()

	got := gate.Rate()
	if got > 100 || got < 1 {
		t.Errorf("Rate() after concurrent Lower calls = %v, want within [1, 100]", got)
	}
}
