package telemetry

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Sleeper abstracts time.Sleep so tests can run retry loops without
// waiting in real time.
type Sleeper func(ctx context.Context, d time.Duration) error

// RealSleeper sleeps for the given duration or returns ctx.Err() if the
// context is cancelled first.
func RealSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryMetrics are created lazily against the current global meter so
// tests that never call telemetry.InitMetrics still work (noop meter).
type retryMetrics struct {
	attempts metric.Int64Counter
	success  metric.Int64Counter
	fail     metric.Int64Counter
}

func newRetryMetrics() retryMetrics {
	m := Meter("lithium-scheduler")
	attempts, _ := m.Int64Counter("lithium_scheduler_retry_attempts_total")
	success, _ := m.Int64Counter("lithium_scheduler_retry_success_total")
	fail, _ := m.Int64Counter("lithium_scheduler_retry_fail_total")
	return retryMetrics{attempts: attempts, success: success, fail: fail}
}

// Backoff executes fn with exponential backoff and full jitter, for
// transient-error retries outside the task runtime's own fixed-delay
// policy.
func Backoff[T any](ctx context.Context, attempts int, initialDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, nil
	}
	rm := newRetryMetrics()
	cur := initialDelay
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		rm.attempts.Add(ctx, 1)
		if err == nil {
			rm.success.Add(ctx, 1)
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if cur > 60*time.Second {
			cur = 60 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		if err := RealSleeper(ctx, sleep); err != nil {
			rm.fail.Add(ctx, 1)
			return zero, err
		}
		cur *= 2
	}
	rm.fail.Add(ctx, 1)
	return zero, lastErr
}
