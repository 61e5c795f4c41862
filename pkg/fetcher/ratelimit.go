package fetcher

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests from one logical
// client. It is safe for concurrent use so that independent workers hitting
// the same endpoint can serialize behind a single shared limiter.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewLimiter returns a limiter with the given minimum inter-request
// interval. A non-positive interval disables throttling.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Throttle blocks until at least the configured interval has elapsed since
// the previous request, or until ctx is cancelled.
func (l *Limiter) Throttle(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	wait := l.interval - now.Sub(l.last)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// rather than stampede.
	l.last = now.Add(wait)
	l.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
