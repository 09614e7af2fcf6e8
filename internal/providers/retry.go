package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// HTTPError is a non-200 response from a provider API.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration // 0 when the header was absent
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// RetryConfig controls RetryDo's backoff.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig retries transient failures three times with
// exponential backoff capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryDo runs fn, retrying retryable HTTP errors with exponential backoff.
// A Retry-After duration from the server overrides the computed delay.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := cfg.BaseDelay
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if he, ok := lastErr.(*HTTPError); ok && he.RetryAfter > 0 {
				wait = he.RetryAfter
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		he, ok := err.(*HTTPError)
		if !ok || !he.Retryable() {
			return zero, err
		}
	}

	return zero, lastErr
}

// ParseRetryAfter parses a Retry-After header value (seconds form only).
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
