package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"outfitapi/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

const unknownClientIP = "unknown"

// ClientIP picks the caller address from proxy headers in order of trust.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if vercel := r.Header.Get("X-Vercel-Forwarded-For"); vercel != "" {
		first, _, _ := strings.Cut(vercel, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return unknownClientIP
}

// RateLimitMiddleware counts requests per client IP in a fixed window. Store failures
// let the request through.
func RateLimitMiddleware(store services.RateLimitStore, prefix string, now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if store == nil {
				return next(c)
			}
			ip := ClientIP(c.Request())
			result, err := store.Hit(c.Request().Context(), prefix+ip)
			if err != nil {
				log.Error().Err(err).Str("client_ip", ip).Msg("rate limit store failed")
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				retryAfter := result.RetryAfterSeconds(now())
				header.Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfter))
				log.Warn().
					Str("client_ip", ip).
					Str("path", c.Path()).
					Int("retry_after", retryAfter).
					Msg("rate limited")
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Too many requests. Please try again later.",
					"code":  CodeRateLimited,
				})
			}
			return next(c)
		}
	}
}

// RequestLogger writes one zerolog event per request.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Status >= http.StatusInternalServerError || v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
