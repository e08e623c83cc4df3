// Package ratelimit protects schedulerd's HTTP surface from overload: a
// token bucket for burst tolerance layered with a fixed-window cap for
// sustained-rate fairness, with OTel counters for dropped requests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
)

// Limiter is a token bucket with a secondary fixed-window counter that
// resets once windowDur has elapsed since the window started. Refill
// happens lazily on each Allow call based on elapsed time.
type Limiter struct {
	mu           sync.Mutex
	capacity     int64
	fillRate     float64
	available    float64
	lastRefill   time.Time
	windowStart  time.Time
	windowDur    time.Duration
	windowCount  int64
	maxPerWindow int64
}

// New creates a combined token bucket + fixed window limiter: up to
// capacity burst tokens refilling at fillRate per second, with a hard cap
// of maxPerWindow requests per windowDur.
func New(capacity int64, fillRate float64, windowDur time.Duration, maxPerWindow int64) *Limiter {
	now := time.Now()
	return &Limiter{
		capacity:     capacity,
		fillRate:     fillRate,
		available:    float64(capacity),
		lastRefill:   now,
		windowStart:  now,
		windowDur:    windowDur,
		maxPerWindow: maxPerWindow,
	}
}

// Allow reports whether one token can be consumed now.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN attempts to consume n tokens at once.
func (l *Limiter) AllowN(n int64) bool {
	if n <= 0 {
		return true
	}
	now := time.Now()
	meter := otel.GetMeterProvider().Meter("lithium-scheduler-ratelimit")

	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		refill := elapsed * l.fillRate
		if refill > 0 {
			l.available = minFloat(float64(l.capacity), l.available+refill)
			l.lastRefill = now
		}
	}

	if now.Sub(l.windowStart) >= l.windowDur {
		l.windowStart = now
		l.windowCount = 0
	}

	if l.maxPerWindow > 0 && l.windowCount+n > l.maxPerWindow {
		counter, _ := meter.Int64Counter("lithium_scheduler_ratelimit_window_drops_total")
		counter.Add(context.Background(), 1)
		return false
	}

	if float64(n) <= l.available {
		l.available -= float64(n)
		l.windowCount += n
		return true
	}
	counter, _ := meter.Int64Counter("lithium_scheduler_ratelimit_token_drops_total")
	counter.Add(context.Background(), 1)
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
