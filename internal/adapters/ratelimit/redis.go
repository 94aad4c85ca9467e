package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"codeagents/pkg/errors"
)

// Lua script for a sliding-window log kept in a sorted set (atomic operation)
// KEYS[1] = window key
// ARGV[1] = now in milliseconds
// ARGV[2] = window in milliseconds
// ARGV[3] = limit
// ARGV[4] = member id for this request
// Returns: {1, 0} if acquired, {0, wait_ms} otherwise
const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('PEXPIRE', key, window)
    return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then
    wait = 1
end
return {0, wait}
`

// RedisWindowLimiter shares one sliding window across processes through Redis.
type RedisWindowLimiter struct {
	client *redis.Client
	name   string
	key    string
	limit  int
	window time.Duration
	script *redis.Script
}

// NewRedisWindowLimiter creates a distributed limiter allowing limit requests per window.
func NewRedisWindowLimiter(client *redis.Client, name string, limit int, window time.Duration) *RedisWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RedisWindowLimiter{
		client: client,
		name:   name,
		key:    fmt.Sprintf("rate_limit:llm:%s", name),
		limit:  limit,
		window: window,
		script: redis.NewScript(luaSlidingWindowScript),
	}
}

// Acquire takes a slot in the shared window or waits for one to free up.
func (l *RedisWindowLimiter) Acquire(ctx context.Context, maxWait time.Duration) (func(), error) {
	deadline := time.Now().Add(maxWait)

	for {
		if err := ctx.Err(); err != nil {
			return noRelease, err
		}

		member := uuid.NewString()
		wait, err := l.tryAcquire(ctx, member)
		if err != nil {
			return noRelease, errors.Wrapf(err, "redis rate limiter %s", l.name)
		}
		if wait == 0 {
			return l.releaser(member), nil
		}

		if time.Now().Add(wait).After(deadline) {
			return noRelease, rejected(l.name, l.limit, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return noRelease, err
		}
	}
}

func (l *RedisWindowLimiter) tryAcquire(ctx context.Context, member string) (time.Duration, error) {
	result, err := l.script.Run(
		ctx,
		l.client,
		[]string{l.key},
		time.Now().UnixMilli(),
		l.window.Milliseconds(),
		l.limit,
		member,
	).Int64Slice()
	if err != nil {
		return 0, errors.Wrap(err, "failed to execute sliding window script")
	}
	if len(result) != 2 {
		return 0, errors.Wrapf(errors.ErrInternal, "unexpected script result %v", result)
	}

	if result[0] == 1 {
		return 0, nil
	}
	return time.Duration(result[1]) * time.Millisecond, nil
}

func (l *RedisWindowLimiter) releaser(member string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.client.ZRem(ctx, l.key, member).Err()
	}
}

// Count returns the number of requests currently recorded in the window.
func (l *RedisWindowLimiter) Count(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-l.window).UnixMilli()
	return l.client.ZCount(ctx, l.key, fmt.Sprintf("(%d", cutoff), "+inf").Result()
}

// Reset clears the window (useful for testing).
func (l *RedisWindowLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// Limit returns the per-window budget.
func (l *RedisWindowLimiter) Limit() int {
	return l.limit
}
