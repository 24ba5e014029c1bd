package client

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeConfig              = "CONFIG_ERROR"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInvalidResponse     = "INVALID_RESPONSE"
	CodeNetwork             = "NETWORK_ERROR"
	CodeNoProviders         = "NO_PROVIDERS"
)

const defaultFailureMessage = "Failed to generate outfit"

// MessageFor turns an API failure into the text shown to the user. retryAfter is the
// server's Retry-After hint in seconds, zero when absent.
func MessageFor(status int, code, serverError string, retryAfter int) string {
	switch code {
	case CodeValidation:
		return "Invalid input: " + serverError
	case CodeConfig:
		return "AI service is not properly configured. Please contact support."
	case CodeQuotaExceeded:
		if retryAfter > 0 {
			return fmt.Sprintf("AI service quota exceeded. Please try again in %s.", seconds(retryAfter))
		}
		return "AI service quota exceeded. Please try again later."
	case CodeRateLimited:
		if retryAfter > 0 {
			return fmt.Sprintf("Too many requests. Please wait %s before trying again.", seconds(retryAfter))
		}
		return "Too many requests. Please wait a moment before trying again."
	case CodeUpstreamUnavailable:
		if retryAfter > 0 {
			return fmt.Sprintf("AI service is temporarily unavailable. Please try again in %s.", seconds(retryAfter))
		}
		return "AI service is temporarily unavailable. Please try again shortly."
	case CodeInvalidResponse:
		return "The AI returned an unexpected response. Please try again."
	case CodeNetwork:
		return "Network error. Please check your connection and try again."
	case CodeNoProviders:
		return "No AI providers are configured. Please contact support."
	}

	switch {
	case status == http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case status == http.StatusUnauthorized:
		return "Authentication required. Please sign in and try again."
	case status == http.StatusForbidden:
		return "You do not have permission to do that."
	case status == http.StatusNotFound:
		return "The requested service was not found."
	case status >= http.StatusInternalServerError:
		return "Server error. Please try again later."
	}
	if serverError != "" {
		return serverError
	}
	return defaultFailureMessage
}

func seconds(n int) string {
	if n == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", n)
}
