package ai

import (
	"context"
	"fmt"
	"time"

	"codeagents/internal/adapters/ratelimit"
	"codeagents/internal/adapters/retry"
	"codeagents/internal/metrics"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// ManagerConfig is the fixed configuration of one ModelManager.
type ManagerConfig struct {
	Model      ModelIdentity
	Credential *Credential

	// RateLimitWait bounds how long a call waits for a free slot before failing RateLimited
	RateLimitWait time.Duration
	// RequestTimeout is the deadline of each individual provider attempt
	RequestTimeout time.Duration
	// Retry.MaxAttempts counts every provider call, the first one included
	Retry retry.Config

	// Defaults applied when a call does not override them
	Temperature float64
	MaxTokens   int

	Validation ValidatorConfig
}

// ModelManager owns one model identity and performs completions with
// validation, rate limiting, per-attempt timeouts and retries.
// It is safe for concurrent use; the limiter is the only shared mutable state.
type ModelManager struct {
	cfg       ManagerConfig
	provider  CompletionProvider
	limiter   ratelimit.Limiter
	validator *Validator
	retrier   *retry.Middleware
	usage     *UsageTracker
	log       *logger.Logger
}

// NewModelManager validates cfg and builds a manager.
// For the deterministic identity provider and limiter may be nil; for AI
// identities a credential, provider and limiter are required.
func NewModelManager(cfg ManagerConfig, provider CompletionProvider, limiter ratelimit.Limiter, usage *UsageTracker) (*ModelManager, error) {
	if _, ok := catalogue[cfg.Model]; !ok {
		return nil, errors.NewValidationError("model", "unknown model identity", cfg.Model)
	}

	validator, err := NewValidator(cfg.Validation)
	if err != nil {
		return nil, err
	}

	if usage == nil {
		usage = NewUsageTracker()
	}

	m := &ModelManager{
		cfg:       cfg,
		provider:  provider,
		limiter:   limiter,
		validator: validator,
		usage:     usage,
		log:       logger.Get().With("component", "model_manager", "model", cfg.Model),
	}

	if cfg.Model.IsDeterministic() {
		return m, nil
	}

	if cfg.Credential.Empty() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s requires an API key (OPENAI_API_KEY)", cfg.Model)
	}
	if provider == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s requires a completion provider", cfg.Model)
	}
	if limiter == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "model %s requires a rate limiter", cfg.Model)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.NewValidationError("request_timeout", "must be positive", cfg.RequestTimeout)
	}

	retryCfg := cfg.Retry
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RecordRetry(string(cfg.Model))
		m.log.Warnw("Completion attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", retryCfg.MaxAttempts,
			"backoff", delay,
			"kind", errors.KindOf(err).String(),
			"error", err,
		)
	}
	m.retrier = retry.New(retryCfg, isTransient)

	return m, nil
}

// Model returns the bound identity.
func (m *ModelManager) Model() ModelIdentity {
	return m.cfg.Model
}

// Usage returns the tracker accumulating this manager's token usage.
func (m *ModelManager) Usage() *UsageTracker {
	return m.usage
}

// GetCompletion returns a validated completion for prompt or a *CompletionError.
// Cancelling ctx aborts slot waits, the provider call and backoff.
func (m *ModelManager) GetCompletion(ctx context.Context, prompt string, opts ...CompletionOption) (*Completion, error) {
	if m.cfg.Model.IsDeterministic() {
		return nil, m.fail(errors.KindUnsupportedOperation, 0,
			errors.Wrap(errors.ErrUnsupportedOperation, "deterministic model has no completion endpoint"))
	}

	req, err := m.buildRequest(prompt, opts)
	if err != nil {
		return nil, m.fail(errors.KindInvalidInput, 0, err)
	}

	start := time.Now()
	var (
		resp     *ProviderResponse
		attempts int
	)
	err = m.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		r, err := m.attempt(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	latency := time.Since(start)

	if err != nil {
		kind := failureKind(ctx, err)
		if kind == errors.KindRateLimited {
			metrics.RecordRateLimited(string(m.cfg.Model))
		}
		cerr := m.fail(kind, attempts, err)
		metrics.RecordCompletion(string(m.cfg.Model), latency, 0, 0, cerr)
		return nil, cerr
	}

	m.usage.Record(m.cfg.Model, resp.Usage)

	if err := m.validator.ValidateResponse(resp.Text); err != nil {
		cerr := m.fail(errors.KindResponseValidationFailed, attempts, err)
		metrics.RecordCompletion(string(m.cfg.Model), latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cerr)
		return nil, cerr
	}

	metrics.RecordCompletion(string(m.cfg.Model), latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)
	m.log.Debugw("Completion succeeded",
		"attempts", attempts,
		"latency", latency,
		"total_tokens", resp.Usage.TotalTokens,
		"finish_reason", resp.FinishReason,
	)

	return &Completion{
		Text:          resp.Text,
		Model:         m.cfg.Model,
		ProviderModel: resp.Model,
		FinishReason:  resp.FinishReason,
		Usage:         resp.Usage,
		Latency:       latency,
	}, nil
}

func (m *ModelManager) buildRequest(prompt string, opts []CompletionOption) (CompletionRequest, error) {
	if err := m.validator.ValidatePrompt(prompt); err != nil {
		return CompletionRequest{}, err
	}

	var o CompletionOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := CompletionRequest{
		Model:         m.cfg.Model,
		Prompt:        prompt,
		Temperature:   m.cfg.Temperature,
		MaxTokens:     m.cfg.MaxTokens,
		StopSequences: o.StopSequences,
	}
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		req.MaxTokens = *o.MaxTokens
	}

	if err := m.validator.ValidateRequest(req); err != nil {
		return CompletionRequest{}, err
	}
	return req, nil
}

// attempt performs one rate-limited provider call under the per-attempt deadline
func (m *ModelManager) attempt(ctx context.Context, req CompletionRequest) (*ProviderResponse, error) {
	release, err := m.limiter.Acquire(ctx, m.cfg.RateLimitWait)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		release()
		return nil, err
	}

	m.cfg.Credential.MarkUsed(time.Now())

	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	resp, err := m.provider.Complete(attemptCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: attempt exceeded %s: %w", errors.ErrTimeout, m.cfg.RequestTimeout, err)
		}
		return nil, err
	}
	return resp, nil
}

func (m *ModelManager) fail(kind errors.Kind, attempts int, err error) *CompletionError {
	return &CompletionError{
		Kind:     kind,
		Model:    m.cfg.Model,
		Attempts: attempts,
		Err:      err,
	}
}

// isTransient decides which attempt failures are retried
func isTransient(err error) bool {
	switch {
	case errors.Is(err, errors.ErrRateLimited):
		return false
	case errors.Is(err, errors.ErrTimeout):
		return true
	default:
		return retry.IsRetryable(err)
	}
}

// failureKind maps the retry loop's final error onto a caller-facing kind
func failureKind(ctx context.Context, err error) errors.Kind {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.KindTimeout
		}
		return errors.KindCanceled
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return errors.KindProviderUnavailable
	}

	if errors.Is(err, errors.ErrRateLimited) {
		return errors.KindRateLimited
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind()
	}

	if kind := errors.KindOf(err); kind != errors.KindUnknown {
		return kind
	}
	return errors.KindProviderUnavailable
}
