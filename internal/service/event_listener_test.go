package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"csbridge/internal/models"
	"csbridge/internal/retry"
	"csbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedStream replays frames on each connection and then fails.
type scriptedStream struct {
	frames []*types.WebhookEvent
	opens  atomic.Int32
}

func (s *scriptedStream) StreamEvents(ctx context.Context, _ []string, handle types.EventHandler) error {
	if s.opens.Add(1) > 1 {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, f := range s.frames {
		if err := handle(ctx, f); err != nil {
			return err
		}
	}
	return errors.New("connection reset")
}

func messageEvent(t *testing.T, payload types.MessagePayload) *types.WebhookEvent {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &types.WebhookEvent{Event: types.EventMessage, Session: "default", Payload: raw}
}

func fastBackoff() *retry.Backoff {
	return retry.NewBackoff(retry.BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
}

func TestEventListener_ToInbound(t *testing.T) {
	l := NewEventListener(nil, nil, &mockDownloader{}, nil, quietLogger())

	ev := l.ToInbound(&types.MessagePayload{ID: "wamid-1", From: chat, Body: "cek", Timestamp: 1717200000})
	assert.Equal(t, chat, ev.ConversationID)
	assert.Equal(t, "wamid-1", ev.MessageID)
	assert.Equal(t, models.TextMessage{Body: "cek"}, ev.Content)
	assert.Equal(t, time.Unix(1717200000, 0).UTC(), ev.ReceivedAt)

	media := l.ToInbound(&types.MessagePayload{From: chat, HasMedia: true, Media: &types.MediaInfo{URL: "/api/files/x.jpg"}})
	_, isMedia := media.Content.(models.MediaMessage)
	assert.True(t, isMedia)
	assert.False(t, media.ReceivedAt.IsZero())

	both := l.ToInbound(&types.MessagePayload{From: chat, Body: "foto", HasMedia: true})
	_, isBoth := both.Content.(models.TextWithMediaMessage)
	assert.True(t, isBoth)
}

func TestRemoteMedia_Download(t *testing.T) {
	dl := &mockDownloader{}
	dl.On("DownloadMedia", mock.Anything, "/api/files/x").Return([]byte("img"), "image/webp", nil)

	src := &remoteMedia{downloader: dl, info: &types.MediaInfo{URL: "/api/files/x"}}
	payload, err := src.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/webp", payload.MimeType)

	src = &remoteMedia{downloader: dl, info: &types.MediaInfo{URL: "/api/files/x", Mimetype: "image/png"}}
	payload, err = src.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/png", payload.MimeType)

	_, err = (&remoteMedia{downloader: dl}).Download(context.Background())
	assert.Error(t, err)
}

func TestEventListener_HandleEvent(t *testing.T) {
	handler := &mockInboundHandler{}
	l := NewEventListener(nil, handler, nil, nil, quietLogger())
	handler.On("Handle", mock.Anything, mock.MatchedBy(func(ev models.InboundEvent) bool { return ev.MessageID == "ok" })).
		Return(&IntakeResult{}, nil)
	handler.On("Handle", mock.Anything, mock.MatchedBy(func(ev models.InboundEvent) bool { return ev.MessageID == "fails" })).
		Return(nil, errors.New("persist failed"))

	ctx := context.Background()
	assert.NoError(t, l.HandleEvent(ctx, messageEvent(t, types.MessagePayload{ID: "ok", From: chat, Body: "cek"})))
	assert.NoError(t, l.HandleEvent(ctx, messageEvent(t, types.MessagePayload{ID: "fails", From: chat, Body: "cek"})))
	assert.NoError(t, l.HandleEvent(ctx, &types.WebhookEvent{Event: types.EventMessage, Payload: json.RawMessage(`{"id":"x"}`)}))
	assert.NoError(t, l.HandleEvent(ctx, &types.WebhookEvent{Event: types.EventSession, Payload: json.RawMessage(`{"name":"default","status":"WORKING"}`)}))
	assert.NoError(t, l.HandleEvent(ctx, &types.WebhookEvent{Event: "presence.update"}))

	handler.AssertNumberOfCalls(t, "Handle", 2)
}

func TestEventListener_ReconnectsAfterStreamFailure(t *testing.T) {
	handler := &mockInboundHandler{}
	handled := make(chan struct{}, 1)
	handler.On("Handle", mock.Anything, mock.Anything).Run(func(mock.Arguments) { handled <- struct{}{} }).Return(&IntakeResult{}, nil)

	stream := &scriptedStream{frames: []*types.WebhookEvent{messageEvent(t, types.MessagePayload{ID: "a", From: chat, Body: "cek"})}}
	l := NewEventListener(stream, handler, nil, fastBackoff(), quietLogger())

	require.NoError(t, l.Start(context.Background()))
	assert.Error(t, l.Start(context.Background()))
	assert.True(t, l.IsRunning())

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not handled")
	}
	require.Eventually(t, func() bool { return stream.opens.Load() >= 2 }, 5*time.Second, time.Millisecond)

	l.Stop()
	assert.False(t, l.IsRunning())
	l.Stop()
}

func TestEventListener_LogsReconnectDelay(t *testing.T) {
	logger, hook := test.NewNullLogger()
	stream := &scriptedStream{}
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: 4 * time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   1,
		Jitter:       true,
	})
	l := NewEventListener(stream, &mockInboundHandler{}, nil, backoff, logger)

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()
	require.Eventually(t, func() bool { return stream.opens.Load() >= 2 }, 5*time.Second, time.Millisecond)

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Event stream interrupted, reconnecting" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Data[LogFieldAttempt])
	delay, err := time.ParseDuration(entry.Data[LogFieldBackoff].(string))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, delay, 3*time.Millisecond)
	assert.LessOrEqual(t, delay, 4*time.Millisecond)
}
