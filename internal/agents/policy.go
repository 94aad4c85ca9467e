package agents

import (
	"context"
	"strings"

	"codeagents/internal/adapters/ai"
	"codeagents/pkg/errors"
)

// FallbackNone disables the deterministic fallback entirely
const FallbackNone = "none"

// FallbackPolicy decides whether a model-path failure degrades to the deterministic path.
type FallbackPolicy struct {
	Enabled bool
}

// ParseFallbackPolicy interprets the configured fallback model.
// An empty value or the deterministic identity enables the pattern fallback,
// "none" disables it. Another AI model is rejected.
func ParseFallbackPolicy(fallbackModel string) (FallbackPolicy, error) {
	name := strings.TrimSpace(fallbackModel)
	if name == "" {
		return FallbackPolicy{Enabled: true}, nil
	}
	if strings.EqualFold(name, FallbackNone) {
		return FallbackPolicy{}, nil
	}

	model, err := ai.ParseModelIdentity(name)
	if err != nil {
		return FallbackPolicy{}, errors.Wrap(err, "fallback_model")
	}
	if !model.IsDeterministic() {
		return FallbackPolicy{}, errors.NewValidationError("fallback_model",
			"only the deterministic model or \"none\" can be used as fallback", name)
	}
	return FallbackPolicy{Enabled: true}, nil
}

// ShouldFallback reports whether err from the model path may be replaced by a degraded result.
// Unavailability (rate limited, timed out, provider down) falls back; caller or
// configuration defects and cancellation are surfaced.
func (p FallbackPolicy) ShouldFallback(ctx context.Context, err error) bool {
	if !p.Enabled || err == nil || ctx.Err() != nil {
		return false
	}

	switch errors.KindOf(err) {
	case errors.KindRateLimited, errors.KindTimeout, errors.KindProviderUnavailable:
		return true
	default:
		return false
	}
}
