package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		Timeout:         2 * time.Second,
		TimeoutBackoff:  time.Millisecond,
		ThrottleBackoff: time.Millisecond,
	}
}

func TestWithRetryRecoversFromThrottling(t *testing.T) {
	calls := 0
	text, err := withRetry(context.Background(), ProviderGroq, fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &statusError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterBudget(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), ProviderHuggingFace, fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		return "", &statusError{StatusCode: http.StatusServiceUnavailable, Message: "model loading"}
	})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 3, calls)
	assert.True(t, providerErr.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestWithRetryDoesNotRetryQuotaOrClientErrors(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), ProviderOpenAI, fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		return "", &QuotaError{Provider: ProviderOpenAI, Message: "quota"}
	})
	assert.True(t, IsQuotaError(err))
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = withRetry(context.Background(), ProviderOpenAI, fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		return "", &statusError{StatusCode: http.StatusUnauthorized, Message: "bad key"}
	})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 1, calls)
	assert.False(t, providerErr.Retryable)
	assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
}

func TestWithRetryRetriesTimeouts(t *testing.T) {
	policy := fastRetry()
	policy.Timeout = 10 * time.Millisecond
	calls := 0
	_, err := withRetry(context.Background(), ProviderAnthropic, policy, func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 3, calls)
	assert.True(t, providerErr.Retryable)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWithRetryStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, ProviderGoogle, fastRetry(), func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", &statusError{StatusCode: http.StatusServiceUnavailable}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	assert.InDelta(t, 90, parseRetryAfter(future).Seconds(), 2)
}

func TestOpenAIProviderComplete(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"variations\":[]}"}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIOptions{APIKey: " sk-test ", BaseURL: server.URL, Retry: fastRetry()})
	text, err := provider.Complete(context.Background(), "style me")
	require.NoError(t, err)
	assert.Equal(t, `{"variations":[]}`, text)
	assert.Equal(t, "gpt-4o-mini", provider.Model())
	assert.Equal(t, "gpt-4o-mini", received["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, received["response_format"])

	messages := received["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, SystemInstruction, messages[0].(map[string]any)["content"])
	assert.Equal(t, "style me", messages[1].(map[string]any)["content"])
}

func TestOpenAIProviderQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "20")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer server.Close()

	_, err := NewOpenAIProvider(OpenAIOptions{APIKey: "k", BaseURL: server.URL, Retry: fastRetry()}).Complete(context.Background(), "p")
	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, ProviderOpenAI, quotaErr.Provider)
	assert.Equal(t, 20*time.Second, quotaErr.RetryAfter)
}

func TestGroqProviderRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"llama","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}]}`)
	}))
	defer server.Close()

	provider := NewGroqProvider(OpenAIOptions{APIKey: "k", BaseURL: server.URL, Retry: fastRetry()})
	text, err := provider.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, ProviderGroq, provider.Name())
}

func TestAnthropicProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultAnthropicModel, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		if assert.Len(t, req.System, 1) {
			assert.Equal(t, SystemInstruction, req.System[0].Text)
		}
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[{"type":"text","text":"{\"ok\":true}"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer server.Close()

	provider := NewAnthropicProvider(AnthropicOptions{APIKey: "ak", BaseURL: server.URL, Retry: fastRetry()})
	text, err := provider.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestAnthropicProviderErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error, hits int32)
	}{
		{
			name:   "billing is a quota error",
			status: http.StatusBadRequest,
			body:   `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low. Visit Plans & Billing."}}`,
			check: func(t *testing.T, err error, hits int32) {
				assert.True(t, IsQuotaError(err))
				assert.Equal(t, int32(1), hits)
			},
		},
		{
			name:   "overloaded is retried",
			status: 529,
			body:   `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			check: func(t *testing.T, err error, hits int32) {
				var providerErr *ProviderError
				require.ErrorAs(t, err, &providerErr)
				assert.Equal(t, http.StatusServiceUnavailable, providerErr.StatusCode)
				assert.Equal(t, int32(3), hits)
			},
		},
		{
			name:   "bad key is terminal",
			status: http.StatusUnauthorized,
			body:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			check: func(t *testing.T, err error, hits int32) {
				var providerErr *ProviderError
				require.ErrorAs(t, err, &providerErr)
				assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
				assert.Contains(t, err.Error(), "invalid x-api-key")
				assert.Equal(t, int32(1), hits)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			_, err := NewAnthropicProvider(AnthropicOptions{APIKey: "k", BaseURL: server.URL, Retry: fastRetry()}).Complete(context.Background(), "p")
			require.Error(t, err)
			tc.check(t, err, hits.Load())
		})
	}
}

func TestHuggingFaceProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mistralai/Mistral-7B-Instruct-v0.3", r.URL.Path)
		assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))

		var req huggingFaceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, SystemInstruction+"\n\nstyle me", req.Inputs)
		assert.False(t, req.Parameters.ReturnFullText)

		fmt.Fprint(w, `[{"generated_text":"{\"variations\":[]}"}]`)
	}))
	defer server.Close()

	provider := NewHuggingFaceProvider(HuggingFaceOptions{APIKey: "hf", BaseURL: server.URL, Retry: fastRetry()})
	text, err := provider.Complete(context.Background(), "style me")
	require.NoError(t, err)
	assert.Equal(t, `{"variations":[]}`, text)
}

func TestHuggingFaceProviderColdStart(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"Model is currently loading","estimated_time":20}`)
			return
		}
		fmt.Fprint(w, `{"generated_text":"warm"}`)
	}))
	defer server.Close()

	text, err := NewHuggingFaceProvider(HuggingFaceOptions{APIKey: "hf", BaseURL: server.URL, Retry: fastRetry()}).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "warm", text)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDecodeGeneratedText(t *testing.T) {
	text, err := decodeGeneratedText([]byte(`"bare"`))
	require.NoError(t, err)
	assert.Equal(t, "bare", text)

	_, err = decodeGeneratedText([]byte(`[]`))
	assert.Error(t, err)

	_, err = decodeGeneratedText([]byte(`  `))
	assert.Error(t, err)

	_, err = decodeGeneratedText([]byte(`<html>`))
	assert.Error(t, err)
}

func TestGoogleProviderQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	provider, err := NewGoogleProvider(GoogleOptions{APIKey: "g", BaseURL: server.URL + "/", Retry: fastRetry()})
	require.NoError(t, err)
	_, err = provider.Complete(context.Background(), "p")
	assert.True(t, IsQuotaError(err), "%v", err)
	assert.Equal(t, "gemini-2.0-flash", provider.Model())
}

func TestGoogleProviderComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"variations\":[]}"}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()

	provider, err := NewGoogleProvider(GoogleOptions{APIKey: "g", BaseURL: server.URL + "/", Retry: fastRetry()})
	require.NoError(t, err)
	text, err := provider.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"variations":[]}`, text)
}

func TestGoogleProviderReusesClientAcrossAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{}"}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()

	provider, err := NewGoogleProvider(GoogleOptions{APIKey: "g", BaseURL: server.URL + "/", Retry: fastRetry()})
	require.NoError(t, err)
	client := provider.client
	require.NotNil(t, client)

	text, err := provider.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, int32(2), hits.Load())
	assert.Same(t, client, provider.client)
}

func TestIsQuotaErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &QuotaError{Provider: ProviderGoogle, Message: "quota"})
	assert.True(t, IsQuotaError(err))
	assert.False(t, IsQuotaError(errors.New("quota")))
	assert.EqualError(t, &ConfigError{Variables: []string{"A", "B", "C"}}, "No AI API key configured. Set A, B, or C")
}
