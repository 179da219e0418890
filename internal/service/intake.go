package service

import (
	"context"
	"fmt"

	"csbridge/internal/attachments"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/events"
	"csbridge/internal/gate"
	"csbridge/internal/metrics"
	"csbridge/internal/models"
	"csbridge/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Gatekeeper decides whether an inbound event is processed.
type Gatekeeper interface {
	Evaluate(ctx context.Context, in gate.Input) gate.Verdict
}

// MediaSaver stores downloaded media against its message.
type MediaSaver interface {
	Save(ctx context.Context, messageID int64, data []byte, mimeType, name string) (*models.Attachment, error)
}

// Replier produces the automatic answer to an accepted message.
type Replier interface {
	Reply(ctx context.Context, conversationID string, text *string) (*AutoReplyResult, error)
}

// IntakeResult is the trace of one event through the pipeline.
type IntakeResult struct {
	Verdict    gate.Verdict
	InboundID  int64
	Attachment *models.Attachment
	// MediaErr is set when the media could not be stored; the pipeline still replied.
	MediaErr  error
	AutoReply *AutoReplyResult
}

// Intake runs gate, persistence, media storage and auto-reply for each inbound event.
type Intake struct {
	gate      Gatekeeper
	messages  MessageWriter
	media     MediaSaver
	replier   Replier
	publisher events.Publisher
	logger    *logrus.Logger
}

func NewIntake(gk Gatekeeper, messages MessageWriter, media MediaSaver, replier Replier, publisher events.Publisher, logger *logrus.Logger) *Intake {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Intake{
		gate:      gk,
		messages:  messages,
		media:     media,
		replier:   replier,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle runs one event to completion. A rejected event returns a result with
// Verdict.Proceed false and no error. Failing to persist the inbound row aborts
// the event; failing to store its media does not.
func (i *Intake) Handle(ctx context.Context, ev models.InboundEvent) (*IntakeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "intake.handle",
		attribute.Bool("has_media", ev.HasMedia()))
	defer span.End()

	log := LogWithContext(ctx, i.logger, logrus.Fields{
		LogFieldConversationID:     ev.ConversationID,
		LogFieldTransportMessageID: ev.MessageID,
	})
	log.WithField(LogFieldStage, StageReceived).Debug("Inbound event received")

	verdict := i.gate.Evaluate(ctx, gate.Input{
		ConversationID: ev.ConversationID,
		IsSelfSent:     ev.FromMe,
		RawText:        ev.Body(),
		HasMedia:       ev.HasMedia(),
	})
	metrics.IntakeEvents.WithLabelValues(string(verdict.Reason)).Inc()
	result := &IntakeResult{Verdict: verdict}
	if !verdict.Proceed {
		log.WithFields(logrus.Fields{
			LogFieldStage:  StageRejected,
			LogFieldReason: verdict.Reason,
		}).Debug("Inbound event rejected by gate")
		return result, nil
	}
	log.WithField(LogFieldStage, StageGated).Debug("Inbound event accepted by gate")

	id, err := i.messages.InsertMessage(ctx, models.NewMessage{
		ConversationID: ev.ConversationID,
		Direction:      models.DirectionInbound,
		Text:           verdict.Text,
		Status:         models.StatusPending,
	})
	if err != nil {
		metrics.IntakeFailures.WithLabelValues("persist_inbound").Inc()
		tracing.RecordError(ctx, err)
		apperrors.LogError(log, err, "Failed to persist inbound message")
		return result, err
	}
	result.InboundID = id
	log = log.WithField(LogFieldMessageID, id)
	log.WithField(LogFieldStage, StagePersisted).Info("Inbound message persisted")
	i.publish(ctx, events.KeyInboundPersisted, events.MessageEvent{
		MessageID:      id,
		ConversationID: ev.ConversationID,
		Direction:      string(models.DirectionInbound),
		Status:         string(models.StatusPending),
		HasAttachment:  ev.HasMedia(),
	})

	if src := ev.Media(); src != nil {
		result.Attachment, result.MediaErr = i.storeMedia(ctx, id, ev.MessageID, src)
		if result.MediaErr != nil {
			metrics.IntakeFailures.WithLabelValues("persist_media").Inc()
			apperrors.LogWarn(log, result.MediaErr, "Failed to store inbound media, continuing")
		} else {
			log.WithFields(logrus.Fields{
				LogFieldStage:        StageMediaStored,
				LogFieldAttachmentID: result.Attachment.ID,
			}).Debug("Inbound media stored")
		}
	}

	reply, err := i.replier.Reply(ctx, ev.ConversationID, verdict.Text)
	result.AutoReply = reply
	if err != nil {
		metrics.IntakeFailures.WithLabelValues("dispatch").Inc()
		tracing.RecordError(ctx, err)
		return result, err
	}

	log.WithFields(logrus.Fields{
		LogFieldStage:    StageRecorded,
		LogFieldFallback: reply.UsedFallback,
	}).Info("Inbound message answered")
	return result, nil
}

// storeMedia names the file <transport message id>.<ext>; the store prefixes it
// with the write time.
func (i *Intake) storeMedia(ctx context.Context, messageID int64, transportID string, src models.MediaSource) (*models.Attachment, error) {
	payload, err := src.Download(ctx)
	if err != nil {
		return nil, apperrors.NewAttachmentError("", fmt.Errorf("download media: %w", err))
	}
	if payload == nil || len(payload.Data) == 0 {
		return nil, apperrors.NewAttachmentError("", fmt.Errorf("download media: empty payload"))
	}

	name := ""
	if transportID != "" {
		name = fmt.Sprintf("%s.%s", transportID, attachments.ExtensionForMime(payload.MimeType))
	}
	return i.media.Save(ctx, messageID, payload.Data, payload.MimeType, name)
}

func (i *Intake) publish(ctx context.Context, key string, data events.MessageEvent) {
	if err := i.publisher.Publish(ctx, key, events.NewEnvelope(key, data)); err != nil {
		i.logger.WithError(err).WithField("key", key).Warn("Failed to publish event")
	}
}
