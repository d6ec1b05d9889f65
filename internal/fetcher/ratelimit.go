package fetcher

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the aggregate outbound call rate for one source. A
// single instance is shared by every pipeline and worker of a run so the
// combined rate, not a single pipeline's, respects the source's limit.
// Waiters are served FIFO; there is no priority handling.
type RateLimiter struct {
	source  string
	limiter *rate.Limiter
}

// NewRateLimiter creates a token bucket granting capacity units per
// interval.
func NewRateLimiter(source string, capacity int, interval time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	limit := rate.Limit(float64(capacity) / interval.Seconds())
	return &RateLimiter{
		source:  source,
		limiter: rate.NewLimiter(limit, capacity),
	}
}

// Acquire blocks until weight units of budget are available, then debits
// them. Cancellation of ctx is returned to the caller; any other limiter
// failure is treated as "no limiting" so workers never block forever on a
// broken limiter.
func (r *RateLimiter) Acquire(ctx context.Context, weight int) error {
	if weight <= 0 {
		weight = 1
	}
	if burst := r.limiter.Burst(); weight > burst {
		weight = burst
	}

	if err := r.limiter.WaitN(ctx, weight); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Fail open: a limiter error must not stall the fetch.
		log.Printf("Rate limiter for %s failed open: %v", r.source, err)
	}
	return nil
}

// Allow reports whether weight units are available right now without
// blocking, debiting them when they are.
func (r *RateLimiter) Allow(weight int) bool {
	if weight <= 0 {
		weight = 1
	}
	return r.limiter.AllowN(time.Now(), weight)
}
