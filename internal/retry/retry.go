// Package retry implements the shared retry discipline for outbound
// collaborator calls: bounded attempts, exponential backoff, jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// HTTPError carries an upstream status code so the policy can decide
// whether the failure is transient.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether an error is worth another attempt:
// 429 and 5xx responses and transport-level failures are; other 4xx
// responses and context cancellation are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == 429 || he.StatusCode >= 500
	}
	// Network errors, timeouts on the per-attempt request etc.
	return true
}

// Policy is the bounded exponential backoff applied between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
	}
	return err
}

// delay is base * 2^(attempt-1) plus up to 50% jitter, with MaxDelay
// as a hard ceiling on the jittered result.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << (attempt - 1)
	max := p.MaxDelay
	if max <= 0 {
		max = 10 * time.Second
	}
	if d > max {
		d = max
	}
	d += time.Duration(rand.Int63n(int64(d)/2 + 1))
	if d > max {
		d = max
	}
	return d
}
