package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

type LLMModelName string

const (
	GeminiFlash LLMModelName = "gemini-2.0-flash"
	GeminiPro   LLMModelName = "gemini-2.5-pro"
)

func (m LLMModelName) String() string {
	return string(m)
}

const googleQuotaStatus = "RESOURCE_EXHAUSTED"

type GoogleOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

type GoogleProvider struct {
	model  LLMModelName
	client *genai.Client
	retry  RetryPolicy
}

// NewGoogleProvider builds the Gemini client once; every attempt reuses it.
func NewGoogleProvider(opts GoogleOptions) (*GoogleProvider, error) {
	model := LLMModelName(strings.TrimSpace(opts.Model))
	if model == "" {
		model = GeminiFlash
	}
	if opts.Retry.ThrottleBackoff == 0 {
		opts.Retry = DefaultRetryPolicy(2 * time.Second)
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(opts.APIKey),
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(opts.BaseURL)},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GoogleProvider{
		model:  model,
		client: client,
		retry:  opts.Retry,
	}, nil
}

func (p *GoogleProvider) Name() string  { return ProviderGoogle }
func (p *GoogleProvider) Model() string { return p.model.String() }

func (p *GoogleProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, ProviderGoogle, p.retry, func(ctx context.Context) (string, error) {
		return p.complete(ctx, prompt)
	})
}

func (p *GoogleProvider) complete(ctx context.Context, prompt string) (string, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.model.String(), genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      floatPointer(DefaultTemperature),
		MaxOutputTokens:  DefaultMaxTokens,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction}},
		},
	})
	if err != nil {
		return "", translateGoogleError(err)
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("content blocked by google: %s %s", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no response from google: empty content")
	}
	return text, nil
}

func translateGoogleError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	message := apiErr.Message
	if message == "" {
		message = apiErr.Status
	}
	if apiErr.Status == googleQuotaStatus || isQuotaMessage(message) {
		return &QuotaError{Provider: ProviderGoogle, Message: message}
	}
	return &statusError{StatusCode: apiErr.Code, Message: message}
}

func floatPointer(f float32) *float32 {
	return &f
}
