package fetcher

import "time"

// RetryPolicy bounds retries for transient fetch failures. Each extractor
// owns its own policy value; there is no shared mutable state.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Exponential selects base*2^n backoff; otherwise backoff grows
	// linearly as base*(n+1).
	Exponential bool
}

// DefaultRetryPolicy matches the polite defaults used against the fixed
// target sites.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Exponential: true,
	}
}

// Backoff returns the wait before retrying after the given zero-based
// failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.Exponential {
		return p.BaseDelay * time.Duration(1<<uint(attempt))
	}
	return p.BaseDelay * time.Duration(attempt+1)
}
