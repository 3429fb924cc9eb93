package tmdb

import (
	"context"
	"sync"
	"time"
)

// rateLimiter implements a simple sliding window rate limiter. One instance
// is shared by every worker using the provider, so the window is global for
// the run.
type rateLimiter struct {
	mu          sync.Mutex
	requests    []time.Time
	maxRequests int
	window      time.Duration
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// wait blocks until a request slot is available within the window or the
// context is cancelled.
func (r *rateLimiter) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		r.pruneLocked(now)

		if len(r.requests) < r.maxRequests {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return nil
		}

		// Wait until the oldest request leaves the window, with a small
		// buffer so it has actually expired.
		waitTime := r.window - now.Sub(r.requests[0]) + 10*time.Millisecond
		r.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (r *rateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	valid := r.requests[:0]
	for _, req := range r.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	r.requests = valid
}
