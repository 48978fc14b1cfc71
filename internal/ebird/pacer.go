// Ornithographus - Bird Observation Tile Cache and Geospatial Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ornithographus

package ebird

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/ornithographus/internal/metrics"
)

// Pacing constants
const (
	// slowStreakTrigger is the consecutive-slow count at which the gap
	// formula engages.
	slowStreakTrigger = 3

	// baseGap is both the formula's starting gap and the floor applied
	// when the advertised rate budget runs low.
	baseGap = 500 * time.Millisecond

	// maxGap caps the widened gap no matter how long the slow streak runs.
	maxGap = 10 * time.Second

	// backoffFactor widens the gap per slow response beyond the trigger.
	backoffFactor = 1.5

	// lowBudgetFraction is the advertised remaining/limit ratio below
	// which the gap is raised to at least baseGap.
	lowBudgetFraction = 0.2
)

// Pacer spaces out upstream request starts. All upstream traffic shares
// one Pacer, so the minimum gap holds between the starts of any two
// requests regardless of which tile or feed they serve.
//
// The gap starts at zero and adapts to upstream behavior:
//
//   - Responses slower than the configured threshold grow a
//     consecutive-slow streak; faster responses shrink it (floor 0).
//     From three consecutive slow responses the gap is set to
//     500ms * 1.5^(streak-3), capped at 10s. A fast response narrows
//     the gap along the same curve but never snaps it back to zero.
//   - When the response advertises a rate budget (remaining/limit
//     headers) and less than 20% of it is left, the gap is raised to at
//     least 500ms.
//   - An exhausted-retries 429 raises the gap to at least 500ms.
//
// Thread Safety: all methods are safe for concurrent use. Contention is
// negligible because in-flight fetches are bounded by the batch width.
type Pacer struct {
	limiter *rate.Limiter

	mu              sync.Mutex
	minGap          time.Duration
	consecutiveSlow int
	slowThreshold   time.Duration
}

// NewPacer creates a Pacer with no initial gap. slowThreshold is the
// response duration beyond which a response counts as slow.
func NewPacer(slowThreshold time.Duration) *Pacer {
	if slowThreshold <= 0 {
		slowThreshold = 5 * time.Second
	}
	return &Pacer{
		// Burst 1: a request start consumes the sole token, and the next
		// token arrives one gap later.
		limiter:       rate.NewLimiter(rate.Inf, 1),
		slowThreshold: slowThreshold,
	}
}

// Wait blocks until the minimum gap since the previous request start has
// passed, or the context is cancelled. Call immediately before issuing
// an upstream request.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Observe feeds a completed upstream response back into the pacer.
// elapsed is the request duration; remaining and limit come from the
// response's rate-limit headers (limit <= 0 when the headers are absent).
// Transport errors produce no response and are not observed.
func (p *Pacer) Observe(elapsed time.Duration, remaining, limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elapsed > p.slowThreshold {
		p.consecutiveSlow++
	} else if p.consecutiveSlow > 0 {
		p.consecutiveSlow--
	}
	metrics.SetPacerSlowStreak(p.consecutiveSlow)

	gap := p.minGap
	if p.consecutiveSlow >= slowStreakTrigger {
		widened := time.Duration(float64(baseGap) * math.Pow(backoffFactor, float64(p.consecutiveSlow-slowStreakTrigger)))
		if widened > maxGap {
			widened = maxGap
		}
		gap = widened
	}

	if limit > 0 && float64(remaining)/float64(limit) < lowBudgetFraction && gap < baseGap {
		gap = baseGap
	}

	p.setGapLocked(gap)
}

// Penalize raises the gap to at least baseGap. Called when upstream
// answered 429 through every retry attempt.
func (p *Pacer) Penalize() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.minGap < baseGap {
		p.setGapLocked(baseGap)
	}
}

// MinGap returns the current minimum gap between request starts.
func (p *Pacer) MinGap() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minGap
}

// ConsecutiveSlow returns the current slow-response streak.
func (p *Pacer) ConsecutiveSlow() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveSlow
}

// setGapLocked installs a new gap and retunes the limiter. Caller holds p.mu.
func (p *Pacer) setGapLocked(gap time.Duration) {
	if gap == p.minGap {
		return
	}
	p.minGap = gap

	if gap <= 0 {
		p.limiter.SetLimit(rate.Inf)
	} else {
		p.limiter.SetLimit(rate.Every(gap))
	}
	metrics.SetPacerGap(gap)
}
