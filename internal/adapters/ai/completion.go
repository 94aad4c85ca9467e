package ai

import (
	"context"
	"fmt"
	"time"

	"codeagents/internal/adapters/retry"
	"codeagents/pkg/errors"
)

// CompletionOptions are the per-call generation settings.
// Nil pointers fall back to the manager defaults.
type CompletionOptions struct {
	Temperature   *float64
	MaxTokens     *int
	StopSequences []string
}

// CompletionOption mutates CompletionOptions.
type CompletionOption func(*CompletionOptions)

// WithTemperature sets sampling temperature, valid in [0, 2].
func WithTemperature(t float64) CompletionOption {
	return func(o *CompletionOptions) { o.Temperature = &t }
}

// WithMaxTokens caps the response length in tokens.
func WithMaxTokens(n int) CompletionOption {
	return func(o *CompletionOptions) { o.MaxTokens = &n }
}

// WithStopSequences sets up to four stop sequences.
func WithStopSequences(stops ...string) CompletionOption {
	return func(o *CompletionOptions) { o.StopSequences = append([]string(nil), stops...) }
}

// CompletionRequest is what a provider receives for a single attempt.
type CompletionRequest struct {
	Model         ModelIdentity
	Prompt        string
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates another usage record.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// ProviderResponse is a provider's raw answer to one attempt.
type ProviderResponse struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

// Completion is a successful, validated completion.
type Completion struct {
	Text          string
	Model         ModelIdentity
	ProviderModel string
	FinishReason  string
	Usage         Usage
	Latency       time.Duration
}

// CompletionProvider is the boundary to an external LLM service.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*ProviderResponse, error)
}

// ProviderError is a failed provider call with its HTTP status, 0 for transport failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, errors.ErrCanceled)
	}
	return retry.IsRetryableStatus(e.StatusCode)
}

// Kind maps a non-retryable provider failure onto the caller-facing kinds.
// Rejected credentials and unknown models are configuration defects, not outages.
func (e *ProviderError) Kind() errors.Kind {
	switch e.StatusCode {
	case 400, 401, 403, 404, 413, 422:
		return errors.KindInvalidInput
	default:
		return errors.KindProviderUnavailable
	}
}

// CompletionError is the typed failure returned by ModelManager.GetCompletion.
type CompletionError struct {
	Kind     errors.Kind
	Model    ModelIdentity
	Attempts int
	Err      error
}

// Error implements error interface.
func (e *CompletionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("completion %s (model %s, %d attempts): %v", e.Kind, e.Model, e.Attempts, e.Err)
	}
	return fmt.Sprintf("completion %s (model %s): %v", e.Kind, e.Model, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *CompletionError) Unwrap() []error {
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		return []error{sentinel, e.Err}
	}
	return []error{e.Err}
}

// ErrorKind makes Kind authoritative for errors.KindOf.
func (e *CompletionError) ErrorKind() errors.Kind {
	return e.Kind
}
