package service

import (
	"context"

	"csbridge/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// WithVerbose marks ctx so that identifiers are logged unmasked.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// logFields masks identifiers unless ctx is verbose.
func logFields(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return fields
	}
	return privacy.MaskFields(fields)
}

// LogWithContext returns an entry carrying fields, masked unless ctx is verbose.
func LogWithContext(ctx context.Context, logger logrus.FieldLogger, fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(logFields(ctx, fields))
}
