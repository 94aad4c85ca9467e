package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/adapters/ratelimit"
	"codeagents/pkg/errors"
)

const chatCompletionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4-0613",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "No issues found."},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(NewCredential("sk-test-abcdef123456", 0), server.URL+"/v1/")
	require.NoError(t, err)
	return provider
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(NewCredential("", 0), "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var body map[string]interface{}
	provider := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test-abcdef123456", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON))
	})

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Model:         ModelGPT4,
		Prompt:        "Analyze this code",
		Temperature:   0.3,
		MaxTokens:     200,
		StopSequences: []string{"END"},
	})
	require.NoError(t, err)

	assert.Equal(t, "No issues found.", resp.Text)
	assert.Equal(t, "gpt-4-0613", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49}, resp.Usage)

	assert.Equal(t, "gpt-4", body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.InDelta(t, 200, body["max_tokens"], 1e-9)
	assert.Equal(t, []interface{}{"END"}, body["stop"])

	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
}

func TestOpenAIProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			provider := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "provider says no", "type": "test_error"}}`))
			})

			_, err := provider.Complete(context.Background(), CompletionRequest{
				Model: ModelGPT4, Prompt: "x", Temperature: 0, MaxTokens: 10,
			})
			require.Error(t, err)

			var providerErr *ProviderError
			require.True(t, errors.As(err, &providerErr))
			assert.Equal(t, tt.status, providerErr.StatusCode)
			assert.Equal(t, tt.retryable, providerErr.Retryable())
		})
	}
}

func TestOpenAIProvider_EmptyChoicesIsTransient(t *testing.T) {
	provider := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4","choices":[]}`))
	})

	_, err := provider.Complete(context.Background(), CompletionRequest{Model: ModelGPT4, Prompt: "x", MaxTokens: 10})
	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.True(t, providerErr.Retryable())
}

func TestModelManager_WithOpenAIProviderEndToEnd(t *testing.T) {
	var calls atomic.Int32
	provider := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(chatCompletionJSON))
	})

	cfg := testManagerConfig()
	cfg.Model = ModelGPT4
	m, err := NewModelManager(cfg, provider, ratelimit.NewWindowLimiter("e2e", 10, time.Minute), nil)
	require.NoError(t, err)

	got, err := m.GetCompletion(context.Background(), "Analyze this code")
	require.NoError(t, err)
	assert.Equal(t, "No issues found.", got.Text)
	assert.Equal(t, int32(2), calls.Load())
}
