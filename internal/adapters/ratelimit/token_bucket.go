package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"codeagents/pkg/errors"
)

// TokenBucketLimiter spreads the RPM budget evenly using golang.org/x/time/rate.
// Burst is 1, so requests are paced at one per minute/rpm.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
	name    string
	rpm     int
}

// NewTokenBucketLimiter creates a paced limiter
// requestsPerMinute: maximum number of requests allowed per minute
func NewTokenBucketLimiter(name string, requestsPerMinute int) *TokenBucketLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}

	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		name:    name,
		rpm:     requestsPerMinute,
	}
}

// Acquire reserves the next token, refusing reservations further out than maxWait.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, maxWait time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return noRelease, err
	}

	now := time.Now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return noRelease, errors.Wrapf(errors.ErrInternal, "rate limiter %s cannot grant a token", l.name)
	}

	delay := r.DelayFrom(now)
	if delay > maxWait {
		r.CancelAt(now)
		return noRelease, rejected(l.name, l.rpm, delay)
	}

	if err := sleep(ctx, delay); err != nil {
		r.Cancel()
		return noRelease, err
	}

	return r.Cancel, nil
}

// Limit returns the budget in requests per minute.
func (l *TokenBucketLimiter) Limit() int {
	return l.rpm
}
