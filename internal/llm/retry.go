package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/vthunder/mneme/internal/logging"
)

// retryableStatus reports whether an HTTP status is a transient external
// error (spec.md §7: network, rate-limit, 5xx are retried; 4xx other than
// 429 is permanent and surfaced).
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// withRetry retries fn with exponential backoff and jitter, bounded by
// maxAttempts (spec.md §7 "retried with exponential backoff, bounded
// attempt count, jitter"). Network errors (net.Error anywhere in the chain)
// and a *statusError with a retryable status are retried; any other error
// is treated as permanent.
func withRetry(ctx context.Context, maxAttempts int, fn func() (*Response, error)) (*Response, error) {
	var lastErr error
	base := 500 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var se *statusError
		var ne net.Error
		retryable := (errors.As(err, &se) && retryableStatus(se.status)) || errors.As(err, &ne)
		if !retryable {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := base << attempt
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		wait := delay + jitter
		logging.Warn("llm", "transient error, retrying in %s: %v", wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// statusError carries the HTTP status an API call failed with, so
// withRetry can distinguish transient from permanent failures.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return "llm: api status " + http.StatusText(e.status) + ": " + e.body
}
