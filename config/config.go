package config

import (
	"fmt"
	"time"

	"outfitapi/services"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"production"`
	Port string `env:"PORT" envDefault:"8083"`

	// AIProvider is tried first; unknown values fall back to google.
	AIProvider       string        `env:"AI_PROVIDER" envDefault:"google"`
	AIRequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"60s"`

	GoogleAPIKey      string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY"`
	GroqAPIKey        string `env:"GROQ_API_KEY"`
	HuggingFaceAPIKey string `env:"HUGGINGFACE_API_KEY"`

	GoogleModel      string `env:"GOOGLE_MODEL"`
	OpenAIModel      string `env:"OPENAI_MODEL"`
	AnthropicModel   string `env:"ANTHROPIC_MODEL"`
	GroqModel        string `env:"GROQ_MODEL"`
	HuggingFaceModel string `env:"HUGGINGFACE_MODEL"`

	RateLimitPerMinute   int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"3"`
	ImageSearchPerMinute int    `env:"IMAGE_SEARCH_PER_MINUTE" envDefault:"20"`
	RedisURL             string `env:"REDIS_URL"`

	PexelsAPIKey      string `env:"PEXELS_API_KEY"`
	UnsplashAccessKey string `env:"UNSPLASH_ACCESS_KEY"`

	AsyncBrokerAddress   string `env:"ASYNC_BROKER_ADDRESS"`
	HistoryRetentionDays int    `env:"HISTORY_RETENTION_DAYS" envDefault:"30"`

	DB DB
	R2 R2

	SentryDSN string `env:"SENTRY_DSN"`
}

type DB struct {
	Username string `env:"DB_USERNAME"`
	Password string `env:"DB_PASSWORD"`
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME"`
}

func (d DB) Configured() bool {
	return d.Host != "" && d.Name != ""
}

func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.Username, d.Password, d.Host, d.Port, d.Name)
}

type R2 struct {
	AccountID       string `env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "development"
}

func (c Config) Credentials() services.Credentials {
	return services.Credentials{
		Google:      c.GoogleAPIKey,
		OpenAI:      c.OpenAIAPIKey,
		Anthropic:   c.AnthropicAPIKey,
		Groq:        c.GroqAPIKey,
		HuggingFace: c.HuggingFaceAPIKey,
	}
}

func (c Config) OrchestratorOptions() services.OrchestratorOptions {
	return services.OrchestratorOptions{
		Credentials: c.Credentials(),
		Models: services.Models{
			Google:      c.GoogleModel,
			OpenAI:      c.OpenAIModel,
			Anthropic:   c.AnthropicModel,
			Groq:        c.GroqModel,
			HuggingFace: c.HuggingFaceModel,
		},
		Preferred:      c.AIProvider,
		RequestTimeout: c.AIRequestTimeout,
	}
}

func (c Config) ImageSearchOptions() services.ImageSearchOptions {
	return services.ImageSearchOptions{
		PexelsAPIKey:      c.PexelsAPIKey,
		UnsplashAccessKey: c.UnsplashAccessKey,
	}
}

func (c Config) R2Options() services.R2Options {
	return services.R2Options{
		AccountID:       c.R2.AccountID,
		AccessKeyID:     c.R2.AccessKeyID,
		AccessKeySecret: c.R2.AccessKeySecret,
		Bucket:          c.R2.Bucket,
	}
}
