package testsupport

import (
	"context"
	"sync"
	"sync/atomic"

	"codeagents/internal/adapters/ai"
)

// StubProvider is a scripted ai.CompletionProvider that counts calls.
type StubProvider struct {
	calls atomic.Int32

	mu       sync.Mutex
	respond  func(call int, req ai.CompletionRequest) (*ai.ProviderResponse, error)
	requests []ai.CompletionRequest
}

// NewStubProvider returns a provider whose n-th call (1-based) is answered by respond
func NewStubProvider(respond func(call int, req ai.CompletionRequest) (*ai.ProviderResponse, error)) *StubProvider {
	return &StubProvider{respond: respond}
}

// RespondWith always answers with text
func RespondWith(text string) *StubProvider {
	return NewStubProvider(func(int, ai.CompletionRequest) (*ai.ProviderResponse, error) {
		return &ai.ProviderResponse{
			Text:         text,
			Model:        "stub",
			FinishReason: "stop",
			Usage:        ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	})
}

// AlwaysFail answers every call with err
func AlwaysFail(err error) *StubProvider {
	return NewStubProvider(func(int, ai.CompletionRequest) (*ai.ProviderResponse, error) {
		return nil, err
	})
}

// Unavailable fails every call with a transient 503
func Unavailable() *StubProvider {
	return AlwaysFail(&ai.ProviderError{Provider: "stub", StatusCode: 503, Message: "service unavailable"})
}

func (s *StubProvider) Name() string {
	return "stub"
}

func (s *StubProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.ProviderResponse, error) {
	call := int(s.calls.Add(1))

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.respond(call, req)
}

// Calls returns how many completions were requested
func (s *StubProvider) Calls() int {
	return int(s.calls.Load())
}

// Requests returns a copy of every request seen
func (s *StubProvider) Requests() []ai.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.CompletionRequest(nil), s.requests...)
}
