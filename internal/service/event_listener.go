package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"csbridge/internal/metrics"
	"csbridge/internal/models"
	"csbridge/internal/retry"
	"csbridge/pkg/whatsapp"
	"csbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// InboundHandler runs the intake pipeline for one event.
type InboundHandler interface {
	Handle(ctx context.Context, ev models.InboundEvent) (*IntakeResult, error)
}

// MediaDownloader fetches media referenced by a transport event.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, url string) ([]byte, string, error)
}

// stableConnection is how long a stream must stay up before the reconnect
// backoff starts over.
const stableConnection = time.Minute

// EventListener consumes the transport event stream and feeds each message to
// the intake pipeline, one event at a time. A broken stream is reopened with
// exponential backoff until Stop is called.
type EventListener struct {
	stream     types.EventStream
	intake     InboundHandler
	downloader MediaDownloader
	backoff    *retry.Backoff
	logger     *logrus.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewEventListener(stream types.EventStream, intake InboundHandler, downloader MediaDownloader, backoff *retry.Backoff, logger *logrus.Logger) *EventListener {
	if backoff == nil {
		backoff = retry.NewBackoff(retry.DefaultBackoffConfig())
	}
	return &EventListener{
		stream:     stream,
		intake:     intake,
		downloader: downloader,
		backoff:    backoff,
		logger:     logger,
	}
}

// Start launches the listen loop in the background.
func (l *EventListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("event listener is already running")
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.running = true
	go l.listenLoop(ctx, l.done)

	l.logger.Info("Event listener started")
	return nil
}

// Stop ends the loop and waits for the event in flight to finish.
func (l *EventListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.cancel()
	done := l.done
	l.running = false
	l.mu.Unlock()

	<-done
	l.logger.Info("Event listener stopped")
}

// IsRunning returns whether the listener is currently active
func (l *EventListener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *EventListener) listenLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer metrics.ListenerConnected.Set(0)

	attempt := 0
	for {
		started := time.Now()
		metrics.ListenerConnected.Set(1)
		err := l.stream.StreamEvents(ctx, []string{types.EventMessage, types.EventSession}, l.HandleEvent)
		metrics.ListenerConnected.Set(0)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) >= stableConnection {
			attempt = 0
		}
		attempt++
		metrics.ListenerReconnects.Inc()

		delay := l.backoff.GetNextDelay(attempt)
		entry := l.logger.WithFields(logrus.Fields{
			LogFieldAttempt: attempt,
			LogFieldBackoff: delay.String(),
		})
		if err != nil {
			entry.WithError(err).Warn("Event stream interrupted, reconnecting")
		} else {
			entry.Info("Event stream closed by server, reconnecting")
		}

		if err := l.backoff.Sleep(ctx, delay); err != nil {
			return
		}
	}
}

// HandleEvent processes one transport event. Decode and pipeline failures are
// logged and swallowed so the stream keeps flowing.
func (l *EventListener) HandleEvent(ctx context.Context, event *types.WebhookEvent) error {
	switch event.Event {
	case types.EventMessage:
	case types.EventSession:
		l.logSession(event)
		return nil
	default:
		l.logger.WithField("event", event.Event).Debug("Ignoring transport event")
		return nil
	}

	payload, err := whatsapp.DecodeMessage(event)
	if err != nil {
		l.logger.WithError(err).Warn("Dropping undecodable message event")
		return nil
	}

	if _, err := l.intake.Handle(ctx, l.ToInbound(payload)); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		LogWithContext(ctx, l.logger, logrus.Fields{
			LogFieldConversationID:     payload.From,
			LogFieldTransportMessageID: payload.ID,
		}).WithError(err).Error("Inbound message pipeline failed")
	}
	return nil
}

// ToInbound converts a transport payload into an inbound event.
func (l *EventListener) ToInbound(p *types.MessagePayload) models.InboundEvent {
	var media models.MediaSource
	if p.HasMedia {
		media = &remoteMedia{downloader: l.downloader, info: p.Media}
	}

	received := p.SentAt()
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return models.InboundEvent{
		ConversationID: p.From,
		MessageID:      p.ID,
		FromMe:         p.FromMe,
		ReceivedAt:     received,
		Content:        models.NewContent(p.Body, media),
	}
}

func (l *EventListener) logSession(event *types.WebhookEvent) {
	var sess types.Session
	if err := json.Unmarshal(event.Payload, &sess); err != nil {
		l.logger.WithError(err).Debug("Undecodable session event")
		return
	}
	entry := l.logger.WithFields(logrus.Fields{LogFieldSession: event.Session, "status": sess.Status})
	if sess.Ready() {
		entry.Info("Transport session is ready")
	} else {
		entry.Warn("Transport session is not ready")
	}
}

// remoteMedia downloads media lazily from the transport.
type remoteMedia struct {
	downloader MediaDownloader
	info       *types.MediaInfo
}

func (m *remoteMedia) Download(ctx context.Context) (*models.MediaPayload, error) {
	if m.info == nil || m.info.URL == "" {
		return nil, errors.New("media is not available from the transport")
	}
	if m.downloader == nil {
		return nil, errors.New("no media downloader configured")
	}

	data, contentType, err := m.downloader.DownloadMedia(ctx, m.info.URL)
	if err != nil {
		return nil, err
	}
	mimeType := m.info.Mimetype
	if mimeType == "" {
		mimeType = contentType
	}
	return &models.MediaPayload{Data: data, MimeType: mimeType, Filename: m.info.Filename}, nil
}
