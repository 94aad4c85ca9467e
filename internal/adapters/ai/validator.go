package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"codeagents/pkg/errors"
)

// maxStopSequences matches the chat completions API limit
const maxStopSequences = 4

// ValidatorConfig controls request and response checks.
type ValidatorConfig struct {
	// Enabled toggles response checks; prompt and option checks always run
	Enabled           bool
	MaxPromptLength   int
	MaxResponseLength int
	BlockedPatterns   []string
}

// Validator checks prompts and options before a call and responses after it.
type Validator struct {
	cfg     ValidatorConfig
	blocked []*regexp.Regexp
}

// NewValidator compiles the blocked response patterns.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	blocked := make([]*regexp.Regexp, 0, len(cfg.BlockedPatterns))
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError("validation.blocked_patterns", err.Error(), p)
		}
		blocked = append(blocked, re)
	}

	return &Validator{cfg: cfg, blocked: blocked}, nil
}

// ValidatePrompt rejects empty and over-long prompts. Length is counted in characters.
func (v *Validator) ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.NewValidationError("prompt", "must not be empty", "")
	}
	if v.cfg.MaxPromptLength > 0 {
		if n := utf8.RuneCountInString(prompt); n > v.cfg.MaxPromptLength {
			return errors.NewValidationError("prompt", "exceeds maximum length", n)
		}
	}
	return nil
}

// ValidateRequest checks the resolved generation settings against the model limits.
func (v *Validator) ValidateRequest(req CompletionRequest) error {
	var errs errors.MultiError

	if req.Temperature < 0 || req.Temperature > 2 {
		errs.Add(errors.NewValidationError("temperature", "must be within [0, 2]", req.Temperature))
	}
	if req.MaxTokens <= 0 {
		errs.Add(errors.NewValidationError("max_tokens", "must be positive", req.MaxTokens))
	} else if limit := req.Model.Info().MaxOutputTokens; limit > 0 && req.MaxTokens > limit {
		errs.Add(errors.NewValidationError("max_tokens", "exceeds model output limit", req.MaxTokens))
	}
	if len(req.StopSequences) > maxStopSequences {
		errs.Add(errors.NewValidationError("stop_sequences", "at most 4 allowed", len(req.StopSequences)))
	}
	for _, s := range req.StopSequences {
		if s == "" {
			errs.Add(errors.NewValidationError("stop_sequences", "must not contain empty sequences", s))
			break
		}
	}

	return errs.ToError()
}

// ValidateResponse applies the length limit and content filter when enabled.
func (v *Validator) ValidateResponse(text string) error {
	if !v.cfg.Enabled {
		return nil
	}

	if v.cfg.MaxResponseLength > 0 {
		if n := utf8.RuneCountInString(text); n > v.cfg.MaxResponseLength {
			return errors.Wrapf(errors.ErrResponseValidationFailed, "response length %d exceeds %d", n, v.cfg.MaxResponseLength)
		}
	}

	for _, re := range v.blocked {
		if re.MatchString(text) {
			return errors.Wrapf(errors.ErrResponseValidationFailed, "response matched blocked pattern %q", re.String())
		}
	}

	return nil
}
