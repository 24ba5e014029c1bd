package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1/"
	defaultGroqModel     = "llama-3.1-70b-versatile"
	defaultGroqBaseURL   = "https://api.groq.com/openai/v1/"

	openAIQuotaCode = "insufficient_quota"
)

type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

// OpenAICompatibleProvider talks to any chat-completions API the openai SDK can reach.
// OpenAI and Groq both use it with different base URLs.
type OpenAICompatibleProvider struct {
	name   string
	model  string
	client openai.Client
	retry  RetryPolicy
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAICompatibleProvider {
	if opts.Retry.ThrottleBackoff == 0 {
		opts.Retry = DefaultRetryPolicy(2 * time.Second)
	}
	return newOpenAICompatible(ProviderOpenAI, defaultOpenAIModel, defaultOpenAIBaseURL, opts)
}

func NewGroqProvider(opts OpenAIOptions) *OpenAICompatibleProvider {
	if opts.Retry.ThrottleBackoff == 0 {
		opts.Retry = DefaultRetryPolicy(time.Second)
	}
	return newOpenAICompatible(ProviderGroq, defaultGroqModel, defaultGroqBaseURL, opts)
}

func newOpenAICompatible(name, defaultModel, defaultBaseURL string, opts OpenAIOptions) *OpenAICompatibleProvider {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
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
	return &OpenAICompatibleProvider{
		name:   name,
		model:  model,
		client: openai.NewClient(requestOptions...),
		retry:  opts.Retry,
	}
}

func (p *OpenAICompatibleProvider) Name() string  { return p.name }
func (p *OpenAICompatibleProvider) Model() string { return p.model }

func (p *OpenAICompatibleProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, p.name, p.retry, func(ctx context.Context) (string, error) {
		return p.complete(ctx, prompt)
	})
}

func (p *OpenAICompatibleProvider) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemInstruction),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(DefaultMaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", p.translateError(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no response from %s: empty content", p.name)
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAICompatibleProvider) translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	message := apiErr.Message
	if message == "" {
		message = apiErr.Code
	}
	if message == "" {
		message = http.StatusText(apiErr.StatusCode)
	}
	if apiErr.Code == openAIQuotaCode || isQuotaMessage(message) {
		return &QuotaError{Provider: p.name, Message: message, RetryAfter: retryAfterHeader(apiErr.Response)}
	}
	return &statusError{StatusCode: apiErr.StatusCode, Message: message}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	return parseRetryAfter(resp.Header.Get("Retry-After"))
}
