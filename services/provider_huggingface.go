package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHuggingFaceModel   = "mistralai/Mistral-7B-Instruct-v0.3"
	defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co/models"
)

type HuggingFaceOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

// HuggingFaceProvider calls the hosted inference API. Cold models answer 503 while
// loading, which the shared retry loop treats as transient.
type HuggingFaceProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	retry   RetryPolicy
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
	Options    huggingFaceOptions    `json:"options"`
}

type huggingFaceParameters struct {
	Temperature    float64 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

type huggingFaceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type huggingFaceGenerated struct {
	GeneratedText *string `json:"generated_text"`
}

func NewHuggingFaceProvider(opts HuggingFaceOptions) *HuggingFaceProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultHuggingFaceModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if opts.Retry.ThrottleBackoff == 0 {
		opts.Retry = DefaultRetryPolicy(5 * time.Second)
	}
	return &HuggingFaceProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
		retry:   opts.Retry,
	}
}

func (p *HuggingFaceProvider) Name() string  { return ProviderHuggingFace }
func (p *HuggingFaceProvider) Model() string { return p.model }

func (p *HuggingFaceProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, ProviderHuggingFace, p.retry, func(ctx context.Context) (string, error) {
		return p.complete(ctx, prompt)
	})
}

func (p *HuggingFaceProvider) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(huggingFaceRequest{
		Inputs: SystemInstruction + "\n\n" + prompt,
		Parameters: huggingFaceParameters{
			Temperature:  DefaultTemperature,
			MaxNewTokens: DefaultMaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding huggingface request: %w", err)
	}

	endpoint := p.baseURL + "/" + modelPath(p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building huggingface request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	retryAfter := retryAfterHeader(resp)
	body, err := readBody(resp)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && isQuotaMessage(statusErr.Message) {
			return "", &QuotaError{Provider: ProviderHuggingFace, Message: statusErr.Message, RetryAfter: retryAfter}
		}
		return "", err
	}
	return decodeGeneratedText(body)
}

// decodeGeneratedText accepts the three envelopes the inference API has been seen to
// return: [{"generated_text": ...}], {"generated_text": ...} or a bare JSON string.
func decodeGeneratedText(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errors.New("no response from huggingface: empty body")
	}

	var text string
	switch trimmed[0] {
	case '[':
		var list []huggingFaceGenerated
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("decoding huggingface response: %w", err)
		}
		if len(list) > 0 && list[0].GeneratedText != nil {
			text = *list[0].GeneratedText
		}
	case '{':
		var single huggingFaceGenerated
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return "", fmt.Errorf("decoding huggingface response: %w", err)
		}
		if single.GeneratedText != nil {
			text = *single.GeneratedText
		}
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("decoding huggingface response: %w", err)
		}
	default:
		return "", fmt.Errorf("unexpected huggingface response: %s", truncate(string(trimmed), 200))
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.New("no response from huggingface: empty generated_text")
	}
	return text, nil
}

func modelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
