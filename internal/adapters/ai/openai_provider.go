package ai

import (
	"context"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

const providerNameOpenAI = "openai"

// Ensure OpenAIProvider implements CompletionProvider
var _ CompletionProvider = (*OpenAIProvider)(nil)

// OpenAIProvider calls the chat completions API using the official OpenAI Go SDK.
// SDK retries are disabled; ModelManager owns retry, timeout and rate limiting.
type OpenAIProvider struct {
	client openai.Client
	log    *logger.Logger
}

// NewOpenAIProvider creates a provider; baseURL is optional (for proxies and tests).
func NewOpenAIProvider(credential *Credential, baseURL string) (*OpenAIProvider, error) {
	if credential.Empty() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(credential.Reveal()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		log:    logger.Get().With("component", "openai_provider", "api_key", credential.Masked()),
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Complete sends a single-turn chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*ProviderResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}
	if len(req.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.StopSequences}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider:   providerNameOpenAI,
			StatusCode: http.StatusBadGateway,
			Message:    "response contained no choices",
			Err:        errors.ErrProviderUnavailable,
		}
	}

	choice := resp.Choices[0]
	p.log.Debugw("Completion received",
		"model", resp.Model,
		"finish_reason", choice.FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &ProviderResponse{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classify turns SDK errors into ProviderError, leaving context errors for the manager
func (p *OpenAIProvider) classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   providerNameOpenAI,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, "openai request aborted")
	}

	return &ProviderError{
		Provider: providerNameOpenAI,
		Message:  "transport failure",
		Err:      err,
	}
}
