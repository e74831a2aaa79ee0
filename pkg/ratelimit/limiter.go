// Package ratelimit paces outbound requests to the exchange. It wraps
// Uber's token-bucket limiter behind a small interface so the HTTP client
// and tests can swap implementations.
//
// The instant-retry loop in pkg/retry deliberately has no delay of its own;
// this limiter is the only thing standing between a retry storm and the
// exchange, so every transport request must pass through it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a limit of Limit operations per Interval.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// RateLimiter paces operations according to a configured rate.
type RateLimiter interface {
	// Wait blocks until an operation is permitted or ctx is cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the current rate at runtime.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter with a token bucket.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a token-bucket limiter for the given rate.
// The rate is converted to operations per second for the underlying
// limiter, e.g. 120 per minute becomes 2 per second.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

// Wait implements the RateLimiter interface.
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit implements the RateLimiter interface.
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	l.limiter = ratelimit.New(int(rps))
	l.rate = rate
	return nil
}
