package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultAnthropicBaseURL = "https://api.anthropic.com/"

	statusOverloaded = 529
)

type AnthropicOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

type AnthropicProvider struct {
	model  string
	client anthropic.Client
	retry  RetryPolicy
}

type anthropicErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicProvider(opts AnthropicOptions) *AnthropicProvider {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	if opts.Retry.ThrottleBackoff == 0 {
		opts.Retry = DefaultRetryPolicy(3 * time.Second)
	}
	requestOptions := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithBaseURL(baseURL),
		// attempts are governed by withRetry
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(opts.HTTPClient))
	}
	return &AnthropicProvider{
		model:  model,
		client: anthropic.NewClient(requestOptions...),
		retry:  opts.Retry,
	}
}

func (p *AnthropicProvider) Name() string  { return ProviderAnthropic }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, ProviderAnthropic, p.retry, func(ctx context.Context) (string, error) {
		return p.complete(ctx, prompt)
	})
}

func (p *AnthropicProvider) complete(ctx context.Context, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   DefaultMaxTokens,
		Temperature: anthropic.Float(DefaultTemperature),
		System:      []anthropic.TextBlockParam{{Text: SystemInstruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", translateAnthropicError(err)
	}
	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("no response from anthropic: empty content")
}

func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	message := strings.TrimSpace(apiErr.RawJSON())
	var envelope anthropicErrorEnvelope
	if json.Unmarshal([]byte(apiErr.RawJSON()), &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if message == "" {
		message = http.StatusText(apiErr.StatusCode)
	}
	if isQuotaMessage(message) {
		return &QuotaError{Provider: ProviderAnthropic, Message: message, RetryAfter: retryAfterHeader(apiErr.Response)}
	}
	// 529 overloaded behaves like a 503 cold start
	status := apiErr.StatusCode
	if status == statusOverloaded {
		status = http.StatusServiceUnavailable
	}
	return &statusError{StatusCode: status, Message: message}
}
