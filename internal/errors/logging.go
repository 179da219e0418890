package errors

import (
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with structured error logging
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger
func NewLogger() *Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{Logger: logger}
}

// Fields returns the structured log fields carried by err.
func Fields(err error) logrus.Fields {
	fields := logrus.Fields{}
	appErr, ok := As(err)
	if !ok {
		return fields
	}

	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// LogError logs an error with structured context
func (l *Logger) LogError(err error, message string, fields ...logrus.Fields) {
	LogError(l.Logger, err, message, fields...)
}

// LogWarn logs a warning with structured context
func (l *Logger) LogWarn(err error, message string, fields ...logrus.Fields) {
	LogWarn(l.Logger, err, message, fields...)
}

// LogRetryableError logs a retryable error at warn level, non-retryable at error level
func (l *Logger) LogRetryableError(err error, message string, fields ...logrus.Fields) {
	LogRetryableError(l.Logger, err, message, fields...)
}

// LogError logs err at error level on any logrus logger or entry.
func LogError(logger logrus.FieldLogger, err error, message string, fields ...logrus.Fields) {
	entry(logger, err, fields).Error(message)
}

// LogWarn logs err at warn level on any logrus logger or entry.
func LogWarn(logger logrus.FieldLogger, err error, message string, fields ...logrus.Fields) {
	entry(logger, err, fields).Warn(message)
}

func LogRetryableError(logger logrus.FieldLogger, err error, message string, fields ...logrus.Fields) {
	if IsRetryable(err) {
		LogWarn(logger, err, message, fields...)
		return
	}
	LogError(logger, err, message, fields...)
}

func entry(logger logrus.FieldLogger, err error, fields []logrus.Fields) *logrus.Entry {
	e := logger.WithError(err).WithFields(Fields(err))
	for _, f := range fields {
		e = e.WithFields(f)
	}
	return e
}
