package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter that throttles outbound AI calls
// to stay inside the provider's requests-per-minute allowance.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	tokens            float64
	lastRefill        time.Time
}

func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastRefill:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		needed := 1.0 - r.tokens
		rate := float64(r.requestsPerMinute) / 60.0
		wait := time.Duration(needed / rate * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * float64(r.requestsPerMinute) / 60.0
	if max := float64(r.requestsPerMinute); r.tokens > max {
		r.tokens = max
	}
	r.lastRefill = now
}
