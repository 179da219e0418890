package middleware

import (
	"net/http"
	"strings"

	"csbridge/internal/httputil"
	"csbridge/internal/service"
	"csbridge/internal/tracing"

	"github.com/sirupsen/logrus"
)

// DetailedLoggingConfig controls what gets logged
type DetailedLoggingConfig struct {
	LogRequestHeaders bool
	SensitiveHeaders  []string // Headers to mask
	SkipEndpoints     []string // Path prefixes to skip
}

// DefaultDetailedLoggingConfig returns sensible defaults
func DefaultDetailedLoggingConfig() DetailedLoggingConfig {
	return DetailedLoggingConfig{
		LogRequestHeaders: true,
		SensitiveHeaders: []string{
			"authorization", "x-api-key", "x-webhook-hmac",
			"cookie", "set-cookie",
		},
		SkipEndpoints: []string{"/metrics", "/health"},
	}
}

// DetailedLoggingMiddleware logs each request at debug level and marks the
// request context verbose so downstream logs carry unmasked identifiers.
// Bodies are never logged; they hold customer messages.
func DetailedLoggingMiddleware(logger *logrus.Logger, config DetailedLoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range config.SkipEndpoints {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			fields := logrus.Fields{
				"request_id":     tracing.GetRequestID(r.Context()),
				"method":         r.Method,
				"url":            r.URL.String(),
				"remote_ip":      httputil.RemoteIP(r),
				"content_length": r.ContentLength,
				"protocol":       r.Proto,
			}
			if config.LogRequestHeaders {
				fields["request_headers"] = maskHeaders(r.Header, config.SensitiveHeaders)
			}
			logger.WithFields(fields).Debug("HTTP request details")

			next.ServeHTTP(w, r.WithContext(service.WithVerbose(r.Context(), true)))
		})
	}
}

func maskHeaders(h http.Header, sensitive []string) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if isSensitiveHeader(name, sensitive) {
			out[name] = "***MASKED***"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func isSensitiveHeader(name string, sensitive []string) bool {
	for _, s := range sensitive {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
