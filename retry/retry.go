// Package retry implements the jittered exponential backoff shared by the
// Store's transient-error retries, the Fetcher's HTTP retries, and the
// Embedder's synchronous API calls. Each caller supplies its own attempt cap
// and base interval; the shape of the backoff is identical everywhere it is
// used in docvault, so it lives in one place.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff with jitter.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Base is the initial delay before the first retry.
	Base time.Duration
	// Max caps the computed delay so it never grows unbounded.
	Max time.Duration
}

// Delay returns the jittered delay to wait before attempt number n (1-indexed:
// n=1 is the delay before the second try).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.Base << uint(n-1)
	if d <= 0 || d > p.Max {
		d = p.Max
	}
	// full jitter: uniform in [0, d]
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// Do runs fn up to MaxAttempts times, sleeping Delay(n) between attempts.
// fn's returned bool reports whether the error is retriable; a non-retriable
// error or context cancellation stops the loop immediately.
func Do(ctx context.Context, p Policy, fn func(attempt int) (retriable bool, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		retriable, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable || attempt == p.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
