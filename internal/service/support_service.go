package service

import (
	"context"
	"io"
	"strconv"
	"strings"

	"csbridge/internal/attachments"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/events"
	"csbridge/internal/models"
	"csbridge/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// ConversationStore is the message half of the conversation store.
type ConversationStore interface {
	ListInbound(ctx context.Context) ([]models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	GetThread(ctx context.Context, conversationID string) ([]models.Message, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) error
	DeleteMessage(ctx context.Context, id int64) error
}

// AttachmentManager is what the dashboard needs from the attachment store.
type AttachmentManager interface {
	ListByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error)
	DeleteAllForMessage(ctx context.Context, messageID int64) error
	StoreUpload(name string, r io.Reader) (*attachments.Upload, error)
	Resolve(path string) (string, error)
}

// ReplySender sends operator replies.
type ReplySender interface {
	SendText(ctx context.Context, conversationID, text string, origin Origin) (*DispatchResult, error)
	SendMedia(ctx context.Context, conversationID, filePath, mimeType string, origin Origin) (*DispatchResult, error)
}

// ExclusionEditor reads and edits the exclusion list.
type ExclusionEditor interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// SessionClient exposes the pairing side of the transport.
type SessionClient interface {
	GetSessionStatus(ctx context.Context) (*types.Session, error)
	GetQRCode(ctx context.Context) ([]byte, string, error)
	GetGroups(ctx context.Context) ([]types.Group, error)
}

// ConversationView is one message with its whole thread and the attachments of
// every message in the thread.
type ConversationView struct {
	Message     models.Message
	Thread      []models.Message
	Attachments map[int64][]models.Attachment
}

// ReplyRequest is an operator reply. Either field may be empty, not both.
type ReplyRequest struct {
	Text     string
	FilePath string
	MimeType string
}

type ReplyResult struct {
	Text  *DispatchResult
	Media *DispatchResult
}

// SupportService is the operator-facing API over the stores and the dispatcher.
type SupportService struct {
	store       ConversationStore
	attachments AttachmentManager
	sender      ReplySender
	exclusions  ExclusionEditor
	session     SessionClient
	publisher   events.Publisher
	logger      *logrus.Logger
}

func NewSupportService(store ConversationStore, atts AttachmentManager, sender ReplySender, exclusions ExclusionEditor, session SessionClient, publisher events.Publisher, logger *logrus.Logger) *SupportService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &SupportService{
		store:       store,
		attachments: atts,
		sender:      sender,
		exclusions:  exclusions,
		session:     session,
		publisher:   publisher,
		logger:      logger,
	}
}

// ListInbound returns inbound messages newest first.
func (s *SupportService) ListInbound(ctx context.Context) ([]models.Message, error) {
	return s.store.ListInbound(ctx)
}

func (s *SupportService) message(ctx context.Context, id int64) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperrors.NewNotFoundError("message", strconv.FormatInt(id, 10))
	}
	return msg, nil
}

// Conversation loads a message, its thread oldest first, and the thread's attachments.
func (s *SupportService) Conversation(ctx context.Context, id int64) (*ConversationView, error) {
	msg, err := s.message(ctx, id)
	if err != nil {
		return nil, err
	}
	thread, err := s.store.GetThread(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	view := &ConversationView{
		Message:     *msg,
		Thread:      thread,
		Attachments: make(map[int64][]models.Attachment, len(thread)),
	}
	for _, m := range thread {
		atts, err := s.attachments.ListByMessage(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if len(atts) > 0 {
			view.Attachments[m.ID] = atts
		}
	}
	return view, nil
}

// Reply sends the operator's text and/or file to the conversation of message id
// and then marks that message done. Nothing changes status if a send fails.
func (s *SupportService) Reply(ctx context.Context, id int64, req ReplyRequest) (*ReplyResult, error) {
	msg, err := s.message(ctx, id)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	filePath := ""
	if req.FilePath != "" {
		if filePath, err = s.attachments.Resolve(req.FilePath); err != nil {
			return nil, err
		}
	}
	if text == "" && filePath == "" {
		return nil, apperrors.NewValidationError("text", "reply needs text or a file")
	}

	result := &ReplyResult{}
	if text != "" {
		if result.Text, err = s.sender.SendText(ctx, msg.ConversationID, text, OriginOperator); err != nil {
			return result, err
		}
	}
	if filePath != "" {
		if result.Media, err = s.sender.SendMedia(ctx, msg.ConversationID, filePath, req.MimeType, OriginOperator); err != nil {
			return result, err
		}
	}

	if err := s.UpdateStatus(ctx, msg.ID, models.StatusDone); err != nil {
		return result, err
	}
	return result, nil
}

// ReplyAttachment sends only a file.
func (s *SupportService) ReplyAttachment(ctx context.Context, id int64, filePath, mimeType string) (*ReplyResult, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, apperrors.NewValidationError("file_path", "is required")
	}
	return s.Reply(ctx, id, ReplyRequest{FilePath: filePath, MimeType: mimeType})
}

// UpdateStatus moves a message to status. Reopening a done message is rejected.
func (s *SupportService) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	if !status.Valid() {
		return apperrors.NewValidationError("status", "must be pending or done")
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.publish(ctx, events.KeyStatusChanged, events.MessageEvent{MessageID: id, Status: string(status)})
	return nil
}

// Delete removes a message and its attachments, files first. File removal is best-effort.
func (s *SupportService) Delete(ctx context.Context, id int64) error {
	msg, err := s.message(ctx, id)
	if err != nil {
		return err
	}
	if err := s.attachments.DeleteAllForMessage(ctx, msg.ID); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, msg.ID); err != nil {
		return err
	}

	LogWithContext(ctx, s.logger, logrus.Fields{
		LogFieldMessageID:      msg.ID,
		LogFieldConversationID: msg.ConversationID,
	}).Info("Message deleted")
	s.publish(ctx, events.KeyMessageDeleted, events.MessageEvent{MessageID: msg.ID, ConversationID: msg.ConversationID})
	return nil
}

// Upload stores an operator file under the uploads root for a later reply.
func (s *SupportService) Upload(name string, r io.Reader) (*attachments.Upload, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("file", "name is required")
	}
	return s.attachments.StoreUpload(name, r)
}

func (s *SupportService) Exclusions(ctx context.Context) ([]string, error) {
	list, err := s.exclusions.Load(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "load exclusions")
	}
	return list, nil
}

// AddExclusion reports whether id was newly added.
func (s *SupportService) AddExclusion(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, apperrors.NewValidationError("id", "is required")
	}
	added, err := s.exclusions.Add(ctx, id)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "add exclusion")
	}
	return added, nil
}

// RemoveExclusion returns NOT_FOUND when id was not on the list.
func (s *SupportService) RemoveExclusion(ctx context.Context, id string) error {
	removed, err := s.exclusions.Remove(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "remove exclusion")
	}
	if !removed {
		return apperrors.NewNotFoundError("exclusion", id)
	}
	return nil
}

func (s *SupportService) SessionStatus(ctx context.Context) (*types.Session, error) {
	sess, err := s.session.GetSessionStatus(ctx)
	if err != nil {
		return nil, apperrors.NewTransportError("session_status", err)
	}
	return sess, nil
}

// PairingQR returns the QR image used to link the chat account.
func (s *SupportService) PairingQR(ctx context.Context) ([]byte, string, error) {
	data, contentType, err := s.session.GetQRCode(ctx)
	if err != nil {
		return nil, "", apperrors.NewTransportError("pairing_qr", err)
	}
	return data, contentType, nil
}

func (s *SupportService) Groups(ctx context.Context) ([]types.Group, error) {
	groups, err := s.session.GetGroups(ctx)
	if err != nil {
		return nil, apperrors.NewTransportError("list_groups", err)
	}
	return groups, nil
}

func (s *SupportService) publish(ctx context.Context, key string, data events.MessageEvent) {
	if err := s.publisher.Publish(ctx, key, events.NewEnvelope(key, data)); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to publish event")
	}
}
