// Package fetcher provides a polite HTTP client for the fixed target sites:
// bounded retries with backoff for transient failures, a minimum
// inter-request delay, and terminal handling of definitive not-found
// responses.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound marks a definitive not-found response. Callers terminate the
// listing instead of retrying.
var ErrNotFound = errors.New("resource not found")

// Fetcher wraps an http.Client with a retry policy and a rate limiter.
// Each extractor owns its own Fetcher instance.
type Fetcher struct {
	client    *http.Client
	policy    RetryPolicy
	limiter   *Limiter
	userAgent string
	log       *slog.Logger
}

// New builds a Fetcher. The timeout applies per request; limiter may be nil
// to disable throttling.
func New(timeout time.Duration, policy RetryPolicy, limiter *Limiter, userAgent string, logger *slog.Logger) *Fetcher {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		policy:    policy,
		limiter:   limiter,
		userAgent: userAgent,
		log:       logger,
	}
}

// Get fetches url with throttling and bounded retries. A 404 returns
// ErrNotFound without retrying; timeouts, network errors and 5xx responses
// are retried up to the policy's attempt count with backoff.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, f.policy.Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		if err := f.limiter.Throttle(ctx); err != nil {
			return nil, err
		}

		body, err := f.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		f.log.Warn("fetch failed", "url", url, "attempt", attempt+1, "max_attempts", f.policy.MaxAttempts, "error", err)
	}

	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// GetDocument fetches url and parses the body as HTML.
func (f *Fetcher) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
