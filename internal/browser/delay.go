package browser

import (
	"context"
	"math/rand/v2"
	"time"
)

// RandomDelay pauses for a random duration in [lo, hi] or until ctx is done
func RandomDelay(ctx context.Context, lo, hi time.Duration) error {
	return Sleep(ctx, RandomDuration(lo, hi))
}

// RandomDuration picks a duration uniformly from [lo, hi]
func RandomDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Sleep waits for d unless ctx is cancelled first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
