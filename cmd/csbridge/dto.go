package main

import (
	"path/filepath"
	"strings"

	"csbridge/internal/models"
	"csbridge/internal/service"
	"csbridge/internal/timestamps"
)

type messageDTO struct {
	ID             int64   `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Direction      string  `json:"direction"`
	Text           *string `json:"text"`
	Status         string  `json:"status"`
	AutoReplied    bool    `json:"auto_replied"`
	CreatedAt      string  `json:"created_at"`
	CreatedAtRaw   string  `json:"created_at_raw"`
}

type attachmentDTO struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	Kind      string `json:"kind"`
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

type conversationDTO struct {
	Message     messageDTO                `json:"message"`
	Thread      []messageDTO              `json:"thread"`
	Attachments map[int64][]attachmentDTO `json:"attachments"`
}

type dispatchDTO struct {
	MessageID          int64          `json:"message_id"`
	TransportMessageID string         `json:"transport_message_id,omitempty"`
	Attachment         *attachmentDTO `json:"attachment,omitempty"`
}

type replyDTO struct {
	Text  *dispatchDTO `json:"text,omitempty"`
	Media *dispatchDTO `json:"media,omitempty"`
}

type uploadDTO struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Request bodies.

type replyRequest struct {
	Text     string `json:"text" validate:"max=4096"`
	FilePath string `json:"file_path" validate:"omitempty,max=1024"`
	MimeType string `json:"mime_type" validate:"omitempty,max=255"`
}

type replyAttachmentRequest struct {
	FilePath string `json:"file_path" validate:"required,max=1024"`
	MimeType string `json:"mime_type" validate:"omitempty,max=255"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending done"`
}

type exclusionRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

func (s *Server) toMessageDTO(m models.Message) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Direction:      string(m.Direction),
		Text:           m.Text,
		Status:         string(m.Status),
		AutoReplied:    m.AutoReplied,
		CreatedAt:      timestamps.Display(m.CreatedAt, s.zone),
		CreatedAtRaw:   m.CreatedAtRaw,
	}
}

func (s *Server) toMessageDTOs(msgs []models.Message) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.toMessageDTO(m))
	}
	return out
}

func (s *Server) toAttachmentDTO(a models.Attachment) attachmentDTO {
	return attachmentDTO{
		ID:        a.ID,
		MessageID: a.MessageID,
		Kind:      string(a.Kind),
		URL:       s.uploadURL(a.StoragePath),
		MimeType:  a.MimeType,
		SizeBytes: a.SizeBytes,
		CreatedAt: timestamps.Display(a.CreatedAt, s.zone),
	}
}

func (s *Server) toConversationDTO(v *service.ConversationView) conversationDTO {
	atts := make(map[int64][]attachmentDTO, len(v.Attachments))
	for id, list := range v.Attachments {
		for _, a := range list {
			atts[id] = append(atts[id], s.toAttachmentDTO(a))
		}
	}
	return conversationDTO{
		Message:     s.toMessageDTO(v.Message),
		Thread:      s.toMessageDTOs(v.Thread),
		Attachments: atts,
	}
}

func (s *Server) toDispatchDTO(r *service.DispatchResult) *dispatchDTO {
	if r == nil {
		return nil
	}
	out := &dispatchDTO{MessageID: r.MessageID, TransportMessageID: r.TransportMessageID}
	if r.Attachment != nil {
		a := s.toAttachmentDTO(*r.Attachment)
		out.Attachment = &a
	}
	return out
}

// uploadURL maps a stored path under the uploads root to its /uploads/ URL.
// Files outside the root have no URL.
func (s *Server) uploadURL(path string) string {
	if s.uploadsDir == "" || path == "" {
		return ""
	}
	root, err := filepath.Abs(s.uploadsDir)
	if err != nil {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/uploads/" + filepath.ToSlash(rel)
}
