// Package resiliency wraps cloud-adapter calls with client-side rate
// limiting and a jittered exponential backoff retry loop, so a spike of
// analyze() calls degrades into throttled, gradually-retried requests
// against DynamoDB/S3/Secrets Manager/Cloud Storage/Secret Manager rather
// than a thundering herd.
package resiliency

import (
	"context"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Retrier bounds the rate and retry count of calls to a remote store.
type Retrier struct {
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// New builds a Retrier that allows ratePerSecond calls/sec (bursting up to
// burst) and retries a failing call up to maxRetries times with
// base*2^i + jitter backoff between attempts, mirroring the teacher's
// EnhancedClient retry loop.
func New(ratePerSecond float64, burst, maxRetries int, baseDelay time.Duration) *Retrier {
	return &Retrier{
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Retryable classifies errors a retry can plausibly fix (throttling,
// transient network failure) versus ones it cannot (bad input, not found).
// Callers that don't need the distinction can pass a func that always
// returns true.
type Retryable func(error) bool

// AlwaysRetry treats every non-nil error as worth retrying.
func AlwaysRetry(error) bool { return true }

// Do waits for rate-limiter admission, then calls fn, retrying on failure
// per shouldRetry up to r.maxRetries times with exponential backoff.
func (r *Retrier) Do(ctx context.Context, shouldRetry Retryable, fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if waitErr := r.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt == r.maxRetries {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * r.baseDelay
		jitter := time.Duration(rand.Int63n(int64(r.baseDelay) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
