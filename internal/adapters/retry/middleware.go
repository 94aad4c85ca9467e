package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"codeagents/pkg/errors"
)

// Strategy defines the retry strategy
type Strategy string

const (
	// StrategyExponential uses exponential backoff
	StrategyExponential Strategy = "exponential"
	// StrategyLinear uses linear backoff
	StrategyLinear Strategy = "linear"
	// StrategyFixed uses fixed delay
	StrategyFixed Strategy = "fixed"
)

// Config contains retry configuration
type Config struct {
	// MaxAttempts is the total number of calls, the first one included
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
	Multiplier   float64 // For exponential backoff
	// Jitter is the fraction of each delay that is randomized, in [0, 1]
	Jitter float64
	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Middleware provides retry functionality with backoff and jitter
type Middleware struct {
	config    Config
	retryable func(error) bool
	random    func() float64
}

// New creates a new retry middleware.
// retryable decides which errors earn another attempt; nil uses IsRetryable.
func New(config Config, retryable func(error) bool) *Middleware {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}
	config.Jitter = math.Max(0, math.Min(1, config.Jitter))
	if retryable == nil {
		retryable = IsRetryable
	}

	return &Middleware{config: config, retryable: retryable, random: rand.Float64}
}

// MaxAttempts returns the configured attempt budget
func (m *Middleware) MaxAttempts() int {
	return m.config.MaxAttempts
}

// Do runs fn until it succeeds, fails with a non-retryable error, or attempts run out.
// attempt is 1-based. Cancelling ctx stops the loop during backoff and before the next call.
func (m *Middleware) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		// Parent cancellation always wins over retry classification
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "retry cancelled after attempt %d (%v)", attempt, err)
		}
		if !m.retryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == m.config.MaxAttempts {
			break
		}

		delay := m.Backoff(attempt)
		if m.config.OnRetry != nil {
			m.config.OnRetry(attempt, delay, err)
		}

		// Wait with context cancellation support
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-timer.C:
		}
	}

	return &ExhaustedError{Attempts: m.config.MaxAttempts, Err: lastErr}
}

// Backoff returns the delay after the given failed attempt (1-based), capped at MaxDelay
func (m *Middleware) Backoff(attempt int) time.Duration {
	n := attempt - 1
	var delay time.Duration

	switch m.config.Strategy {
	case StrategyExponential:
		// Exponential: delay = initial * (multiplier ^ n)
		delay = time.Duration(float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(n)))

	case StrategyLinear:
		// Linear: delay = initial * (1 + n)
		delay = m.config.InitialDelay * time.Duration(1+n)

	default:
		delay = m.config.InitialDelay
	}

	// Cap at max delay; overflow shows up as a negative duration
	if delay > m.config.MaxDelay || delay <= 0 {
		delay = m.config.MaxDelay
	}

	// Jitter shortens the delay by up to Jitter of its length
	if m.config.Jitter > 0 {
		delay -= time.Duration(float64(delay) * m.config.Jitter * m.random())
	}

	return delay
}

// IsRetryable determines if an error is worth retrying
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancellation is never retried
	if errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrCanceled) {
		return false
	}

	// Errors that classify themselves
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}

	if errors.Is(err, errors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network errors are generally retryable
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// HTTP status codes that are retryable
	var httpErr interface{ StatusCode() int }
	if errors.As(err, &httpErr) {
		return IsRetryableStatus(httpErr.StatusCode())
	}

	errStr := strings.ToLower(err.Error())
	for _, msg := range []string{"connection refused", "connection reset", "broken pipe", "temporary failure"} {
		if strings.Contains(errStr, msg) {
			return true
		}
	}

	return false
}

// IsRetryableStatus reports whether an HTTP status signals a transient provider failure
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}
