package ratelimit

import (
	"time"

	"github.com/redis/go-redis/v9"

	"codeagents/internal/adapters/config"
	"codeagents/pkg/errors"
)

// New creates the limiter selected by cfg.Backend.
// redisClient is required only for the redis backend.
func New(name string, cfg config.RateLimitConfig, redisClient *redis.Client) (Limiter, error) {
	switch cfg.Backend {
	case config.BackendWindow, "":
		return NewWindowLimiter(name, cfg.RequestsPerMinute, time.Minute), nil
	case config.BackendTokenBucket:
		return NewTokenBucketLimiter(name, cfg.RequestsPerMinute), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "rate limit backend %q requires a redis client", cfg.Backend)
		}
		return NewRedisWindowLimiter(redisClient, name, cfg.RequestsPerMinute, time.Minute), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown rate limit backend %q", cfg.Backend)
	}
}
