package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v62/github"
)

// RateLimitedError indicates the upstream API throttled the request.
// RetryAfter is a hint; callers may back off or degrade to zeroed stats.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by GitHub API (retry after %s)", e.RetryAfter)
}

// TransientError indicates a network-level failure that may succeed on retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// classify wraps a raw client error into the gateway error taxonomy so that
// callers can decide between backoff, retry, and degraded output.
func classify(op string, err error) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: %w", op, &RateLimitedError{
			RetryAfter: time.Until(rateLimitErr.Rate.Reset.Time),
		})
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var retryAfter time.Duration
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retryAfter})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", op, &TransientError{Err: err})
	}

	return fmt.Errorf("%s: %w", op, err)
}
