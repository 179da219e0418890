package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"csbridge/internal/attachments"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/events"
	"csbridge/internal/metrics"
	"csbridge/internal/models"
	"csbridge/internal/tracing"
	"csbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Origin says who produced an outbound message. It decides the recorded status.
type Origin string

const (
	OriginOperator  Origin = "operator"
	OriginAutoReply Origin = "auto_reply"
)

// Status is done for operator replies and pending for auto-replies, which still
// wait for a human.
func (o Origin) Status() models.Status {
	if o == OriginOperator {
		return models.StatusDone
	}
	return models.StatusPending
}

func (o Origin) AutoReplied() bool { return o == OriginAutoReply }

// Transport is the send half of the chat-network client.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error)
	SendMedia(ctx context.Context, chatID string, file types.FileData, caption string) (*types.SendMessageResponse, error)
}

// MessageWriter records outbound rows and removes one whose attachment could
// not be recorded.
type MessageWriter interface {
	InsertMessage(ctx context.Context, msg models.NewMessage) (int64, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// AttachmentRecorder records a file that already sits on disk.
type AttachmentRecorder interface {
	Register(ctx context.Context, messageID int64, path, mimeType string) (*models.Attachment, error)
}

// DispatchResult describes a delivered and recorded outbound message.
type DispatchResult struct {
	MessageID          int64
	TransportMessageID string
	Attachment         *models.Attachment
}

// Dispatcher sends replies over the transport and records them. Nothing is
// recorded for a send the transport rejected.
type Dispatcher struct {
	transport   Transport
	messages    MessageWriter
	attachments AttachmentRecorder
	publisher   events.Publisher
	logger      *logrus.Logger
}

func NewDispatcher(transport Transport, messages MessageWriter, attachments AttachmentRecorder, publisher events.Publisher, logger *logrus.Logger) *Dispatcher {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Dispatcher{
		transport:   transport,
		messages:    messages,
		attachments: attachments,
		publisher:   publisher,
		logger:      logger,
	}
}

// SendText delivers text to the conversation and records one outbound row.
func (d *Dispatcher) SendText(ctx context.Context, conversationID, text string, origin Origin) (*DispatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.send_text",
		attribute.String("origin", string(origin)))
	defer span.End()

	if strings.TrimSpace(conversationID) == "" {
		return nil, apperrors.NewValidationError("conversation_id", "is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("text", "is required")
	}

	resp, err := d.transport.SendText(ctx, conversationID, text)
	if err != nil {
		metrics.Dispatches.WithLabelValues("text", string(origin), "failed").Inc()
		tracing.RecordError(ctx, err)
		return nil, apperrors.NewTransportError("send_text", err).
			WithContext("text", text)
	}
	metrics.Dispatches.WithLabelValues("text", string(origin), "sent").Inc()

	id, err := d.messages.InsertMessage(ctx, models.NewMessage{
		ConversationID: conversationID,
		Direction:      models.DirectionOutbound,
		Text:           &text,
		Status:         origin.Status(),
		AutoReplied:    origin.AutoReplied(),
	})
	if err != nil {
		d.logUnrecorded(ctx, conversationID, origin, err)
		return nil, err
	}

	result := &DispatchResult{MessageID: id, TransportMessageID: transportID(resp)}
	d.recorded(ctx, conversationID, origin, result)
	return result, nil
}

// SendMedia delivers the file at filePath and records an outbound row plus an
// attachment row pointing at the same file. An empty mimeType is inferred from
// the extension.
func (d *Dispatcher) SendMedia(ctx context.Context, conversationID, filePath, mimeType string, origin Origin) (*DispatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.send_media",
		attribute.String("origin", string(origin)))
	defer span.End()

	if strings.TrimSpace(conversationID) == "" {
		return nil, apperrors.NewValidationError("conversation_id", "is required")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apperrors.NewAttachmentError(filePath, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewAttachmentError(filePath, fmt.Errorf("is a directory"))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, apperrors.NewAttachmentError(filePath, err)
	}
	if mimeType == "" {
		mimeType = attachments.GuessMimeType(filePath)
	}

	resp, err := d.transport.SendMedia(ctx, conversationID, types.FileData{
		Mimetype: mimeType,
		Filename: filepath.Base(filePath),
		Data:     base64.StdEncoding.EncodeToString(data),
	}, "")
	if err != nil {
		metrics.Dispatches.WithLabelValues("media", string(origin), "failed").Inc()
		tracing.RecordError(ctx, err)
		return nil, apperrors.NewTransportError("send_media", err)
	}
	metrics.Dispatches.WithLabelValues("media", string(origin), "sent").Inc()

	id, err := d.messages.InsertMessage(ctx, models.NewMessage{
		ConversationID: conversationID,
		Direction:      models.DirectionOutbound,
		Status:         origin.Status(),
		AutoReplied:    origin.AutoReplied(),
	})
	if err != nil {
		d.logUnrecorded(ctx, conversationID, origin, err)
		return nil, err
	}

	att, err := d.attachments.Register(ctx, id, filePath, mimeType)
	if err != nil {
		entry := LogWithContext(ctx, d.logger, logrus.Fields{
			LogFieldConversationID: conversationID,
			LogFieldMessageID:      id,
			LogFieldFilePath:       filePath,
		})
		entry.WithError(err).Error("Failed to record attachment of sent media")
		// A media row without its attachment would show as an empty reply.
		if delErr := d.messages.DeleteMessage(ctx, id); delErr != nil {
			entry.WithError(delErr).Error("Failed to remove outbound row without attachment")
		}
		return nil, err
	}

	result := &DispatchResult{MessageID: id, TransportMessageID: transportID(resp), Attachment: att}
	d.recorded(ctx, conversationID, origin, result)
	return result, nil
}

func (d *Dispatcher) recorded(ctx context.Context, conversationID string, origin Origin, result *DispatchResult) {
	LogWithContext(ctx, d.logger, logrus.Fields{
		LogFieldConversationID:     conversationID,
		LogFieldMessageID:          result.MessageID,
		LogFieldTransportMessageID: result.TransportMessageID,
		LogFieldOrigin:             origin,
		LogFieldStage:              StageDispatched,
	}).Info("Reply dispatched")

	env := events.NewEnvelope(events.KeyReplyDispatched, events.MessageEvent{
		MessageID:      result.MessageID,
		ConversationID: conversationID,
		Direction:      string(models.DirectionOutbound),
		Status:         string(origin.Status()),
		Origin:         string(origin),
		HasAttachment:  result.Attachment != nil,
	})
	if err := d.publisher.Publish(ctx, events.KeyReplyDispatched, env); err != nil {
		d.logger.WithError(err).Warn("Failed to publish reply event")
	}
}

func (d *Dispatcher) logUnrecorded(ctx context.Context, conversationID string, origin Origin, err error) {
	apperrors.LogError(LogWithContext(ctx, d.logger, logrus.Fields{
		LogFieldConversationID: conversationID,
		LogFieldOrigin:         origin,
	}), err, "Reply was delivered but could not be recorded")
}

func transportID(resp *types.SendMessageResponse) string {
	if resp == nil {
		return ""
	}
	return resp.MessageID
}
