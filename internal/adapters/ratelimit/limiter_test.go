package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/adapters/config"
	"codeagents/pkg/errors"
)

func TestWindowLimiter_FailsFastBeyondWaitBudget(t *testing.T) {
	limiter := NewWindowLimiter("test", 2, time.Minute)
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, 0)
	require.NoError(t, err)
	_, err = limiter.Acquire(ctx, 0)
	require.NoError(t, err)

	start := time.Now()
	_, err = limiter.Acquire(ctx, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimited))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "must not wait when the slot is beyond the budget")

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 2, rlErr.Limit)
	assert.Greater(t, rlErr.Wait, 59*time.Second)
}

func TestWindowLimiter_BlocksUntilSlotFrees(t *testing.T) {
	limiter := NewWindowLimiter("test", 1, 150*time.Millisecond)
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, 0)
	require.NoError(t, err)

	start := time.Now()
	_, err = limiter.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWindowLimiter_NeverExceedsBudgetConcurrently(t *testing.T) {
	const budget = 5
	limiter := NewWindowLimiter("test", budget, time.Minute)

	var granted, refused int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Acquire(context.Background(), 10*time.Millisecond); err != nil {
				atomic.AddInt32(&refused, 1)
				return
			}
			atomic.AddInt32(&granted, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(budget), granted)
	assert.Equal(t, int32(15), refused)
	assert.Equal(t, budget, limiter.InFlight())
}

func TestWindowLimiter_ReleaseReturnsSlot(t *testing.T) {
	limiter := NewWindowLimiter("test", 1, time.Minute)
	ctx := context.Background()

	release, err := limiter.Acquire(ctx, 0)
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, 0, limiter.InFlight())
	_, err = limiter.Acquire(ctx, 0)
	require.NoError(t, err)
}

func TestWindowLimiter_ContextCancellation(t *testing.T) {
	limiter := NewWindowLimiter("test", 1, time.Minute)
	_, err := limiter.Acquire(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = limiter.Acquire(ctx, 2*time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, errors.ErrRateLimited))
}

func TestTokenBucketLimiter_PacesRequests(t *testing.T) {
	// 600 req/min = one token every 100ms
	limiter := NewTokenBucketLimiter("test", 600)
	ctx := context.Background()

	_, err := limiter.Acquire(ctx, 0)
	require.NoError(t, err)

	_, err = limiter.Acquire(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimited))

	start := time.Now()
	_, err = limiter.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 600, limiter.Limit())
}

func TestTokenBucketLimiter_ContextCancellation(t *testing.T) {
	limiter := NewTokenBucketLimiter("test", 6)
	_, err := limiter.Acquire(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = limiter.Acquire(ctx, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNoOpLimiter(t *testing.T) {
	limiter := NewNoOpLimiter()
	for i := 0; i < 100; i++ {
		release, err := limiter.Acquire(context.Background(), 0)
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, -1, limiter.Limit())
}

func TestNew_SelectsBackend(t *testing.T) {
	window, err := New("a", config.RateLimitConfig{RequestsPerMinute: 10, Backend: config.BackendWindow}, nil)
	require.NoError(t, err)
	assert.IsType(t, &WindowLimiter{}, window)

	bucket, err := New("a", config.RateLimitConfig{RequestsPerMinute: 10, Backend: config.BackendTokenBucket}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TokenBucketLimiter{}, bucket)

	_, err = New("a", config.RateLimitConfig{RequestsPerMinute: 10, Backend: config.BackendRedis}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = New("a", config.RateLimitConfig{RequestsPerMinute: 10, Backend: "leaky"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
