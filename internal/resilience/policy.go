// Package resilience wraps every outbound upstream call in a middleware chain
// of retry, circuit breaking and tracing, tuned per call class.
package resilience

import (
	"context"
	"time"
)

// Class selects the policy for a call.
type Class int

const (
	// Standard calls are idempotent reads: inventory and geocoding.
	Standard Class = iota
	// Payment calls have side effects and must fail fast.
	Payment
)

func (c Class) String() string {
	switch c {
	case Standard:
		return "standard"
	case Payment:
		return "payment"
	default:
		return "unknown"
	}
}

// Policy governs one outbound call.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Backoff returns the delay before retry n, starting at 1.
	Backoff func(n int) time.Duration
	// UseBreaker puts the per-upstream circuit breaker in the chain.
	UseBreaker bool
}

// PolicyFor returns the built-in policy of a class.
func PolicyFor(c Class) Policy {
	switch c {
	case Payment:
		return Policy{MaxRetries: 1, Backoff: FixedBackoff(100 * time.Millisecond)}
	default:
		return Policy{MaxRetries: 3, Backoff: ExponentialBackoff(200 * time.Millisecond), UseBreaker: true}
	}
}

// ExponentialBackoff yields base × 2^(n−1).
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		if n < 1 {
			n = 1
		}
		return base << (n - 1)
	}
}

// FixedBackoff always yields d.
func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
