package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "csbridge/internal/errors"
	"csbridge/internal/models"
	"csbridge/internal/service"
	"csbridge/pkg/whatsapp"

	"github.com/gorilla/mux"
)

func messageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleWhatsAppWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
		body, err := verifySignature(r, s.cfg.WhatsApp.WebhookSecret)
		if err != nil {
			s.logger.WithError(err).Warn("Rejected webhook request")
			s.writeError(w, r, apperrors.NewAuthError("webhook signature"))
			return
		}

		event, err := whatsapp.ParseWebhookEvent(body)
		if err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", err.Error()))
			return
		}
		if err := s.webhook.HandleEvent(r.Context(), event); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := s.support.ListInbound(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"messages": s.toMessageDTOs(msgs)})
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := messageID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		view, err := s.support.Conversation(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, s.toConversationDTO(view))
	}
}

func (s *Server) handleReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := messageID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req replyRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		res, err := s.support.Reply(r.Context(), id, service.ReplyRequest{
			Text:     req.Text,
			FilePath: req.FilePath,
			MimeType: req.MimeType,
		})
		if err != nil {
			s.writeError(w, r, withSubmittedText(err, req.Text))
			return
		}
		s.writeJSON(w, http.StatusOK, replyDTO{Text: s.toDispatchDTO(res.Text), Media: s.toDispatchDTO(res.Media)})
	}
}

// withSubmittedText echoes the operator's text back in the error context so a
// failed send does not lose it.
func withSubmittedText(err error, text string) error {
	if text == "" {
		return err
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternalError, "reply failed")
	}
	return appErr.WithContext("submitted_text", text)
}

func (s *Server) handleReplyAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := messageID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req replyAttachmentRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err := s.support.ReplyAttachment(r.Context(), id, req.FilePath, req.MimeType)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, replyDTO{Media: s.toDispatchDTO(res.Media)})
	}
}

func (s *Server) handleUpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := messageID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req statusRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.support.UpdateStatus(r.Context(), id, models.Status(req.Status)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": req.Status})
	}
}

func (s *Server) handleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := messageID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.support.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := int64(s.cfg.Uploads.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, r, apperrors.NewValidationError("file", "exceeds the upload size limit"))
				return
			}
			s.writeError(w, r, apperrors.NewValidationError("file", "multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		if header.Size > limit {
			s.writeError(w, r, apperrors.NewValidationError("file", "exceeds the upload size limit"))
			return
		}

		up, err := s.support.Upload(header.Filename, io.LimitReader(file, limit))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, uploadDTO{
			Name: up.Name,
			Path: up.Path,
			Mime: up.MimeType,
			Size: up.Size,
			URL:  s.uploadURL(up.Path),
		})
	}
}

func (s *Server) handleListExclusions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.support.Exclusions(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []string{}
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"exclusions": list})
	}
}

func (s *Server) handleAddExclusion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exclusionRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		added, err := s.support.AddExclusion(r.Context(), req.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		s.writeJSON(w, status, map[string]interface{}{"id": req.ID, "added": added})
	}
}

func (s *Server) handleRemoveExclusion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.support.RemoveExclusion(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSessionStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.support.SessionStatus(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleSessionQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, contentType, err := s.support.PairingQR(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if contentType == "" {
			contentType = "image/png"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
