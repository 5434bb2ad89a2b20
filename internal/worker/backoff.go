package worker

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// ExponentialBackoff returns the delay before retry number attempt (0-based):
// 500ms, 1s, 2s, ... capped at 30s, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt)))
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}

// Retry calls fn until it succeeds, attempts run out or ctx is done.
func Retry(ctx context.Context, log *slog.Logger, op string, attempts int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		wait := ExponentialBackoff(attempt)
		log.Warn("retrying", "op", op, "attempt", attempt+1, "wait_ms", wait.Milliseconds(), "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
