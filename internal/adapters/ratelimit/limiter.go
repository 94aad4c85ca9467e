package ratelimit

import (
	"context"
	"fmt"
	"time"

	"codeagents/pkg/errors"
)

// Limiter hands out request slots against a requests-per-minute budget.
// Implementations are safe for concurrent use.
type Limiter interface {
	// Acquire takes one slot, waiting at most maxWait for it to free up.
	// A slot that will not be used must be handed back through release.
	// Fails with ErrRateLimited when no slot frees within maxWait, or with the
	// context error when ctx ends first.
	Acquire(ctx context.Context, maxWait time.Duration) (release func(), err error)

	// Limit returns the budget in requests per minute, or -1 when unlimited.
	Limit() int
}

// RateLimitError carries limiter context for a rejected acquisition.
type RateLimitError struct {
	Limiter string
	Limit   int
	Wait    time.Duration
	Err     error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limiter %s (limit: %d req/min, next slot in %s): %v", e.Limiter, e.Limit, e.Wait, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func rejected(name string, limit int, wait time.Duration) error {
	return &RateLimitError{
		Limiter: name,
		Limit:   limit,
		Wait:    wait,
		Err:     errors.ErrRateLimited,
	}
}

// sleep waits for d or until ctx ends
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
	case <-timer.C:
		return nil
	}
}

func noRelease() {}

// NoOpLimiter never blocks (for deterministic agents, tests, or disabled rate limiting).
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Acquire returns immediately unless ctx is already done.
func (l *NoOpLimiter) Acquire(ctx context.Context, _ time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return noRelease, err
	}
	return noRelease, nil
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() int {
	return -1
}
