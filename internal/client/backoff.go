package client

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// backoffDelay computes the wait before retry attempt n (0-indexed: the
// delay after the first failed attempt is backoffDelay(p, 0)).
//
//	delay = min(MaxDelay, BaseDelay * Multiplier^attempt) + jitter
//
// Jitter is a random fraction of the computed delay, bounded by
// JitterFraction, so concurrent callers retrying against the same dependency
// do not synchronize into retry storms.
func backoffDelay(p RetryPolicy, attempt int) time.Duration {
	base := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if capped := float64(p.MaxDelay); p.MaxDelay > 0 && base > capped {
		base = capped
	}

	jitter := rand.Float64() * p.JitterFraction * base //nolint:gosec // non-crypto rand is fine for jitter
	return time.Duration(base + jitter)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
