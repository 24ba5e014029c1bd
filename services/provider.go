package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ProviderGoogle      = "google"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderGroq        = "groq"
	ProviderHuggingFace = "huggingface"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Provider is one upstream text-generation API. Complete returns the raw generated
// text; parsing it is left to ParseGeneration.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy bounds how long one provider keeps trying before giving up.
type RetryPolicy struct {
	MaxAttempts int
	// Timeout caps a single attempt.
	Timeout time.Duration
	// TimeoutBackoff is multiplied by the attempt number after a timed out attempt.
	TimeoutBackoff time.Duration
	// ThrottleBackoff is multiplied by the attempt number after a 429 or 503.
	ThrottleBackoff time.Duration
}

func DefaultRetryPolicy(throttleBackoff time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		Timeout:         60 * time.Second,
		TimeoutBackoff:  time.Second,
		ThrottleBackoff: throttleBackoff,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	return p
}

// statusError is what adapters return for a non-2xx upstream response that is not a quota failure.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

func (e *statusError) transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// withRetry runs call under the policy. Quota errors and non-transient failures return
// immediately; timeouts and 429/503 responses are retried with linear backoff until the
// attempt budget is spent.
func withRetry(ctx context.Context, provider string, policy RetryPolicy, call func(ctx context.Context) (string, error)) (string, error) {
	policy = policy.withDefaults()
	var lastErr *ProviderError

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		text, err := call(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if IsQuotaError(err) {
			return "", err
		}

		var delay time.Duration
		var statusErr *statusError
		switch {
		case timedOut || isTimeout(err):
			delay = time.Duration(attempt) * policy.TimeoutBackoff
			lastErr = &ProviderError{Provider: provider, Retryable: true, Err: fmt.Errorf("request timed out after %s", policy.Timeout)}
		case errors.As(err, &statusErr) && statusErr.transient():
			delay = time.Duration(attempt) * policy.ThrottleBackoff
			lastErr = &ProviderError{Provider: provider, StatusCode: statusErr.StatusCode, Retryable: true, Err: statusErr}
		case errors.As(err, &statusErr):
			return "", &ProviderError{Provider: provider, StatusCode: statusErr.StatusCode, Err: statusErr}
		default:
			var providerErr *ProviderError
			if errors.As(err, &providerErr) {
				return "", providerErr
			}
			return "", &ProviderError{Provider: provider, Err: err}
		}

		if attempt == policy.MaxAttempts {
			break
		}
		log.Warn().
			Str("provider", provider).
			Int("attempt", attempt).
			Int("status", lastErr.StatusCode).
			Dur("backoff", delay).
			Msg("transient provider failure, retrying")
		if err := sleepContext(ctx, delay); err != nil {
			return "", err
		}
	}

	lastErr.Err = fmt.Errorf("gave up after %d attempts: %w", policy.MaxAttempts, lastErr.Err)
	return "", lastErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
