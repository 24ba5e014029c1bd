package services

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"outfitapi/models"

	"github.com/rs/zerolog/log"
)

// providerPriority is the fallback order after the preferred provider.
var providerPriority = []string{
	ProviderGoogle,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGroq,
	ProviderHuggingFace,
}

var credentialVariables = []string{
	"GOOGLE_API_KEY",
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
	"GROQ_API_KEY",
	"HUGGINGFACE_API_KEY",
}

// Credentials holds one API key per provider. Empty keys mark a provider as unavailable.
type Credentials struct {
	Google      string
	OpenAI      string
	Anthropic   string
	Groq        string
	HuggingFace string
}

func (c Credentials) key(provider string) string {
	switch provider {
	case ProviderGoogle:
		return strings.TrimSpace(c.Google)
	case ProviderOpenAI:
		return strings.TrimSpace(c.OpenAI)
	case ProviderAnthropic:
		return strings.TrimSpace(c.Anthropic)
	case ProviderGroq:
		return strings.TrimSpace(c.Groq)
	case ProviderHuggingFace:
		return strings.TrimSpace(c.HuggingFace)
	}
	return ""
}

// Models overrides the default model per provider.
type Models struct {
	Google      string
	OpenAI      string
	Anthropic   string
	Groq        string
	HuggingFace string
}

type OrchestratorOptions struct {
	Credentials Credentials
	Models      Models
	// Preferred is tried first; unknown or unconfigured values fall back to google.
	Preferred string
	// RequestTimeout caps a single provider attempt.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Generation is a validated result plus what produced it.
type Generation struct {
	Result   *models.GenerationResult
	Provider string
	Model    string
	Prompt   string
	Duration time.Duration
}

type OutfitGeneratorProvider interface {
	Generate(ctx context.Context, userItems []models.UserItem, preferences models.OutfitPreferences) (*Generation, error)
}

type Orchestrator struct {
	providers []Provider
}

// NewOrchestrator builds one adapter per configured credential, ordered for fallback.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	var providers []Provider
	for _, name := range ProviderOrder(opts.Credentials, opts.Preferred) {
		provider, err := newProvider(name, opts)
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("skipping provider")
			continue
		}
		providers = append(providers, provider)
	}
	return &Orchestrator{providers: providers}
}

// NewOrchestratorWithProviders uses the given providers in order as-is.
func NewOrchestratorWithProviders(providers ...Provider) *Orchestrator {
	return &Orchestrator{providers: providers}
}

// ProviderOrder lists configured providers, preferred first, each exactly once.
func ProviderOrder(credentials Credentials, preferred string) []string {
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if !slices.Contains(providerPriority, preferred) {
		preferred = ProviderGoogle
	}

	var order []string
	if credentials.key(preferred) != "" {
		order = append(order, preferred)
	}
	for _, name := range providerPriority {
		if name == preferred || credentials.key(name) == "" {
			continue
		}
		order = append(order, name)
	}
	return order
}

func newProvider(name string, opts OrchestratorOptions) (Provider, error) {
	key := opts.Credentials.key(name)
	switch name {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIOptions{APIKey: key, Model: opts.Models.OpenAI, HTTPClient: opts.HTTPClient, Retry: retryPolicy(opts, 2*time.Second)}), nil
	case ProviderGroq:
		return NewGroqProvider(OpenAIOptions{APIKey: key, Model: opts.Models.Groq, HTTPClient: opts.HTTPClient, Retry: retryPolicy(opts, time.Second)}), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(AnthropicOptions{APIKey: key, Model: opts.Models.Anthropic, HTTPClient: opts.HTTPClient, Retry: retryPolicy(opts, 3*time.Second)}), nil
	case ProviderHuggingFace:
		return NewHuggingFaceProvider(HuggingFaceOptions{APIKey: key, Model: opts.Models.HuggingFace, HTTPClient: opts.HTTPClient, Retry: retryPolicy(opts, 5*time.Second)}), nil
	default:
		return NewGoogleProvider(GoogleOptions{APIKey: key, Model: opts.Models.Google, HTTPClient: opts.HTTPClient, Retry: retryPolicy(opts, 2*time.Second)})
	}
}

func retryPolicy(opts OrchestratorOptions, throttle time.Duration) RetryPolicy {
	policy := DefaultRetryPolicy(throttle)
	if opts.RequestTimeout > 0 {
		policy.Timeout = opts.RequestTimeout
	}
	return policy
}

func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate renders the prompt and walks the provider order. Only quota errors advance
// to the next provider; every other failure is returned as-is.
func (o *Orchestrator) Generate(ctx context.Context, userItems []models.UserItem, preferences models.OutfitPreferences) (*Generation, error) {
	if len(o.providers) == 0 {
		return nil, &ConfigError{Variables: credentialVariables}
	}

	prompt, err := BuildPrompt(userItems, preferences)
	if err != nil {
		return nil, err
	}

	for i, provider := range o.providers {
		started := time.Now()
		result, err := o.attempt(ctx, provider, prompt)
		if err == nil {
			log.Info().
				Str("provider", provider.Name()).
				Str("model", provider.Model()).
				Dur("duration", time.Since(started)).
				Msg("outfit generated")
			return &Generation{
				Result:   result,
				Provider: provider.Name(),
				Model:    provider.Model(),
				Prompt:   prompt,
				Duration: time.Since(started),
			}, nil
		}

		if IsQuotaError(err) && i < len(o.providers)-1 {
			log.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Str("next_provider", o.providers[i+1].Name()).
				Msg("provider quota exceeded, falling back")
			continue
		}
		return nil, err
	}
	// unreachable: the last provider always returns above
	return nil, &ConfigError{Variables: credentialVariables}
}

func (o *Orchestrator) attempt(ctx context.Context, provider Provider, prompt string) (*models.GenerationResult, error) {
	raw, err := provider.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseGeneration(provider.Name(), raw)
}
