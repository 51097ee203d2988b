// Package warmup retries a startup dependency call a bounded number of times
// with increasing backoff, then gives up without failing the caller.
package warmup

import (
	"context"
	"time"

	"github.com/okian/boxscore/pkg/logger"
	"github.com/okian/boxscore/pkg/metrics"
)

// BackoffFunc returns the delay after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits base*attempt after each failure.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Func is the call being warmed up.
type Func func(ctx context.Context) error

// Run calls fn up to maxAttempts times, sleeping backoff(attempt) between
// failures. It reports whether any attempt succeeded. Exhausting the
// attempts or a cancelled ctx only logs.
func Run(ctx context.Context, name string, fn Func, maxAttempts int, backoff BackoffFunc) bool {
	log := logger.Get().Named("warmup").With(logger.String("name", name))
	if backoff == nil {
		backoff = LinearBackoff(0)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			metrics.RecordWarmupAttempt(name, "success")
			log.Info(ctx, "warm-up succeeded", logger.Int("attempt", attempt))
			return true
		}
		metrics.RecordWarmupAttempt(name, "failure")
		log.Warn(ctx, "warm-up attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", maxAttempts),
			logger.Error(err))

		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info(ctx, "warm-up cancelled", logger.Error(ctx.Err()))
			return false
		case <-timer.C:
		}
	}

	log.Warn(ctx, "warm-up gave up", logger.Int("attempts", maxAttempts))
	return false
}
