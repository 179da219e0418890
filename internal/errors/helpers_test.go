package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		retryable bool
	}{
		{"validation", NewValidationError("text", "required"), ErrCodeInvalidInput, false},
		{"config", NewConfigError("gate.keywords", "empty"), ErrCodeInvalidConfig, false},
		{"persistence", NewPersistenceError("insert", cause), ErrCodePersistence, false},
		{"transport", NewTransportError("sendText", cause), ErrCodeTransport, true},
		{"generation", NewGenerationError(cause), ErrCodeGeneration, false},
		{"attachment", NewAttachmentError("/tmp/x", cause), ErrCodeAttachmentIO, false},
		{"not found", NewNotFoundError("message", "42"), ErrCodeNotFound, false},
		{"transition", NewTransitionError("done", "pending"), ErrCodeInvalidTransition, false},
		{"auth", NewAuthError("bad password"), ErrCodeAuthentication, false},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, GetUserMessage(tt.err))
		})
	}
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{NewValidationError("f", "m"), http.StatusBadRequest},
		{NewAttachmentError("p", nil), http.StatusBadRequest},
		{NewAuthError("r"), http.StatusUnauthorized},
		{NewNotFoundError("message", "1"), http.StatusNotFound},
		{NewTransitionError("done", "pending"), http.StatusConflict},
		{NewRateLimitError(), http.StatusTooManyRequests},
		{NewTransportError("send", nil), http.StatusBadGateway},
		{NewPersistenceError("insert", nil), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusCode(tt.err), "code %s", GetCode(tt.err))
	}
}

func TestToHTTPResponse(t *testing.T) {
	err := NewAttachmentError("/srv/uploads/secret.pdf", errors.New("ENOENT")).
		WithContext("message_id", int64(7))

	resp := ToHTTPResponse(err, "req-1")

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, ErrCodeAttachmentIO, resp.Error.Code)
	assert.Equal(t, "Attachment file not found", resp.Error.Message)
	ctx, ok := resp.Error.Context.(map[string]interface{})
	if assert.True(t, ok) {
		assert.NotContains(t, ctx, "path")
		assert.Equal(t, int64(7), ctx["message_id"])
	}

	plain := ToHTTPResponse(errors.New("boom"), "")
	assert.Equal(t, ErrCodeInternalError, plain.Error.Code)
	assert.Nil(t, plain.Error.Context)
}
