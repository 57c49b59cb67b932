package backend

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited wraps a Backend and throttles KillPair calls so bulk pause and
// kill operations do not flood the scheduler.
type Limited struct {
	Backend
	limiter *rate.Limiter
}

// RateLimited returns b with kill calls limited to rps per second. A
// non-positive rps disables throttling.
func RateLimited(b Backend, rps float64, burst int) Backend {
	if rps <= 0 {
		return b
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{Backend: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) KillPair(ctx context.Context, execID string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("kill %s: %w", execID, err)
	}
	err := l.Backend.KillPair(ctx, execID)
	recordKill(err)
	return err
}
