package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"csbridge/internal/constants"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/models"
	"csbridge/internal/timestamps"
	"csbridge/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 02:00 UTC is 09:00 in the reference zone.
var morningUTC = time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

func newTestReplier(gen Generator, sender TextSender, cfg AutoReplyConfig) *AutoReplier {
	breaker := circuitbreaker.NewWithLogger("generation", 2, time.Minute, quietLogger())
	return NewAutoReplier(gen, sender, breaker, timestamps.DefaultZone(), timestamps.FixedClock(morningUTC), cfg, quietLogger())
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		hour     int
		expected string
	}{
		{4, "Selamat malam"},
		{5, "Selamat pagi"},
		{10, "Selamat pagi"},
		{11, "Selamat siang"},
		{14, "Selamat siang"},
		{15, "Selamat sore"},
		{18, "Selamat sore"},
		{19, "Selamat malam"},
		{23, "Selamat malam"},
		{0, "Selamat malam"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Greeting(tt.hour), "hour %d", tt.hour)
	}
}

func TestBuildPrompt(t *testing.T) {
	text := "cek kode trx 123"

	prompt := BuildPrompt("Selamat pagi", "Balas singkat.", "chika_mp", &text)
	assert.Equal(t, "gunakan Selamat pagi jika diperlukan. Balas singkat. Kita adalah CS chika_mp:\n\ncek kode trx 123", prompt)

	assert.True(t, strings.HasSuffix(BuildPrompt("Selamat malam", "Balas.", "", nil), ":\n\n[pesan media]"))
	empty := ""
	assert.True(t, strings.HasSuffix(BuildPrompt("Selamat malam", "Balas.", "", &empty), "[pesan media]"))
}

func TestAutoReplier_GeneratedReply(t *testing.T) {
	gen := &mockGenerator{}
	sender := &mockSender{}
	text := "tolong cek"

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "gunakan Selamat pagi jika diperlukan.") && strings.HasSuffix(p, "tolong cek")
	})).Return("  Baik, kami cek.  ", nil)
	sender.On("SendText", mock.Anything, chat, "Baik, kami cek.", OriginAutoReply).
		Return(&DispatchResult{MessageID: 5}, nil)

	res, err := newTestReplier(gen, sender, AutoReplyConfig{}).Reply(context.Background(), chat, &text)

	require.NoError(t, err)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, "Baik, kami cek.", res.Text)
	assert.Equal(t, int64(5), res.Dispatch.MessageID)
	gen.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestAutoReplier_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"generator error", "", errors.New("500 from backend")},
		{"empty reply", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			sender := &mockSender{}
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.reply, tt.err)
			sender.On("SendText", mock.Anything, chat, constants.DefaultFallbackText, OriginAutoReply).
				Return(&DispatchResult{MessageID: 6}, nil)

			res, err := newTestReplier(gen, sender, AutoReplyConfig{}).Reply(context.Background(), chat, nil)

			require.NoError(t, err)
			assert.True(t, res.UsedFallback)
			assert.Equal(t, constants.DefaultFallbackText, res.Text)
			sender.AssertExpectations(t)
		})
	}
}

func TestAutoReplier_TimeoutFallsBack(t *testing.T) {
	gen := &mockGenerator{}
	sender := &mockSender{}
	block := make(chan struct{})
	defer close(block)

	// Ignores its context on purpose.
	gen.On("Generate", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-block }).Return("late", nil)
	sender.On("SendText", mock.Anything, chat, "maaf", OriginAutoReply).Return(&DispatchResult{MessageID: 7}, nil)

	start := time.Now()
	res, err := newTestReplier(gen, sender, AutoReplyConfig{FallbackText: "maaf", Timeout: 50 * time.Millisecond}).
		Reply(context.Background(), chat, nil)

	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAutoReplier_OpenBreakerSkipsGenerator(t *testing.T) {
	gen := &mockGenerator{}
	sender := &mockSender{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("down")).Twice()
	sender.On("SendText", mock.Anything, chat, constants.DefaultFallbackText, OriginAutoReply).Return(&DispatchResult{}, nil)

	r := newTestReplier(gen, sender, AutoReplyConfig{})
	for i := 0; i < 3; i++ {
		res, err := r.Reply(context.Background(), chat, nil)
		require.NoError(t, err)
		assert.True(t, res.UsedFallback)
	}

	gen.AssertNumberOfCalls(t, "Generate", 2)
	sender.AssertNumberOfCalls(t, "SendText", 3)
}

func TestAutoReplier_DispatchFailureIsReturned(t *testing.T) {
	gen := &mockGenerator{}
	sender := &mockSender{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)
	sender.On("SendText", mock.Anything, chat, "ok", OriginAutoReply).
		Return(nil, apperrors.NewTransportError("send_text", errors.New("offline")))

	res, err := newTestReplier(gen, sender, AutoReplyConfig{}).Reply(context.Background(), chat, models.StringPtr("cek"))

	assert.Equal(t, apperrors.ErrCodeTransport, apperrors.GetCode(err))
	require.NotNil(t, res)
	assert.Nil(t, res.Dispatch)
	sender.AssertNumberOfCalls(t, "SendText", 1)
}

func TestAutoReplier_NoGenerator(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendText", mock.Anything, chat, constants.DefaultFallbackText, OriginAutoReply).Return(&DispatchResult{}, nil)

	res, err := newTestReplier(nil, sender, AutoReplyConfig{}).Reply(context.Background(), chat, nil)

	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
}
