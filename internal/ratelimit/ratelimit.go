// Package ratelimit provides the client-side request limiter for node calls,
// a wrapper around golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/fd1az/handshake-client/internal/apperror"
)

// Limiter wraps rate.Limiter with convenience methods.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// requestsPerMinute specifies how many requests are allowed per minute.
func New(requestsPerMinute int) *Limiter {
	// Convert requests per minute to rate per second
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10 // Allow burst of 10% of rate limit
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// NewWithBurst creates a new rate limiter with explicit burst.
func NewWithBurst(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a token is available or the context is cancelled.
// A nil limiter never blocks. Failures are reported as CodeRateLimitExceeded,
// including the case where the wait would outlive the context deadline.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}
	return nil
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Tokens returns the current number of available tokens. A nil limiter
// reports +Inf.
func (l *Limiter) Tokens() float64 {
	if l == nil {
		return math.Inf(1)
	}
	return l.limiter.Tokens()
}
