// Package ratelimiter throttles expensive work with a token bucket.
//
// The thumbnail generator uses it to admit decode jobs: every thumbnail miss
// costs one token, so a client scrolling through a large photo directory
// cannot saturate the worker pool faster than the configured rate.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the semantics the server
// needs: zero means unlimited, and waiting honors cancellation.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter admitting perSecond jobs per second with bursts
// of up to burst jobs.
//
// Special cases:
//   - perSecond <= 0: No rate limiting
//   - burst <= 0: Burst defaults to one second's worth of tokens (min 1)
func New(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Unlimited reports whether the limiter admits everything.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx ends.
//
// Returns:
//   - nil if a token was acquired
//   - an error wrapping the context error otherwise
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate limit wait cancelled: %w", ctxErr)
		}
		// The wait would outlast the deadline.
		return fmt.Errorf("rate limit wait cancelled: %w", context.DeadlineExceeded)
	}
	return nil
}

// Tokens returns the tokens currently available. Monitoring only.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
