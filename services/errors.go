package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfigError means no provider credential is available.
type ConfigError struct {
	Variables []string
}

func (e *ConfigError) Error() string {
	return "No AI API key configured. Set " + joinAlternatives(e.Variables)
}

func joinAlternatives(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	}
	return strings.Join(values[:len(values)-1], ", ") + ", or " + values[len(values)-1]
}

// QuotaError flags a billing or quota ceiling on one provider. The orchestrator moves
// on to the next provider when it sees one.
type QuotaError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s API quota exceeded: %s", e.Provider, e.Message)
}

// ProviderError is terminal for one provider attempt: a non-retryable upstream failure
// or an exhausted retry budget.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool // the last failure was transient (timeout, 429, 503)
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ResponseShapeError wraps extraction, decoding and schema failures for a raw model
// response. It never triggers provider fallback.
type ResponseShapeError struct {
	Provider string
	Stage    string // decode, validate
	Err      error
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("invalid %s response (%s): %v", e.Provider, e.Stage, e.Err)
}

func (e *ResponseShapeError) Unwrap() error {
	return e.Err
}

func IsQuotaError(err error) bool {
	var quotaErr *QuotaError
	return errors.As(err, &quotaErr)
}

// isQuotaMessage mirrors the substring checks providers need when no structured code is present.
func isQuotaMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "billing")
}
