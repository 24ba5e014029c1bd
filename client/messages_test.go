package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageFor(t *testing.T) {
	cases := []struct {
		status      int
		code        string
		serverError string
		retryAfter  int
		want        string
	}{
		{http.StatusServiceUnavailable, CodeQuotaExceeded, "", 0, "AI service quota exceeded. Please try again later."},
		{http.StatusServiceUnavailable, CodeQuotaExceeded, "", 1, "AI service quota exceeded. Please try again in 1 second."},
		{http.StatusServiceUnavailable, CodeUpstreamUnavailable, "", 0, "AI service is temporarily unavailable. Please try again shortly."},
		{http.StatusServiceUnavailable, CodeUpstreamUnavailable, "", 60, "AI service is temporarily unavailable. Please try again in 60 seconds."},
		{http.StatusTooManyRequests, CodeRateLimited, "", 0, "Too many requests. Please wait a moment before trying again."},
		{http.StatusInternalServerError, CodeInvalidResponse, "", 0, "The AI returned an unexpected response. Please try again."},
		{0, CodeNoProviders, "", 0, "No AI providers are configured. Please contact support."},
		{http.StatusUnauthorized, "", "", 0, "Authentication required. Please sign in and try again."},
		{http.StatusForbidden, "", "", 0, "You do not have permission to do that."},
		{http.StatusNotFound, "", "", 0, "The requested service was not found."},
		{http.StatusServiceUnavailable, "", "", 0, "Server error. Please try again later."},
		{http.StatusConflict, "", "Already exists", 0, "Already exists"},
		{http.StatusConflict, "", "", 0, "Failed to generate outfit"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MessageFor(tc.status, tc.code, tc.serverError, tc.retryAfter), "%d %s", tc.status, tc.code)
	}
}
