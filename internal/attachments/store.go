// Package attachments stores media files under the uploads root and records
// them against their owning message.
package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"csbridge/internal/constants"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/models"
	"csbridge/internal/security"
	"csbridge/internal/timestamps"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Repository is the attachment half of the conversation store.
type Repository interface {
	InsertAttachment(ctx context.Context, att models.NewAttachment) (*models.Attachment, error)
	ListAttachmentsByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error)
	DeleteAttachmentsByMessage(ctx context.Context, messageID int64) (int64, error)
}

// Upload is a file an operator placed under the uploads root before sending it.
type Upload struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mime"`
	Size     int64  `json:"size"`
}

type Store struct {
	root           string
	repo           Repository
	clock          timestamps.Clock
	logger         *logrus.Logger
	maxUploadBytes int64
}

// Option configures a Store.
type Option func(*Store)

func WithClock(clock timestamps.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func NewStore(root string, repo Repository, logger *logrus.Logger, opts ...Option) (*Store, error) {
	if err := security.ValidateFilePath(root); err != nil {
		return nil, fmt.Errorf("invalid uploads root: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		root:           filepath.Clean(root),
		repo:           repo,
		clock:          timestamps.SystemClock(),
		logger:         logger,
		maxUploadBytes: int64(constants.DefaultMaxUploadMB) * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root is the uploads directory.
func (s *Store) Root() string { return s.root }

func (s *Store) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return apperrors.NewAttachmentError(s.root, err)
	}
	return nil
}

// storageName builds <epoch-ms>_<sanitized name>, generating a name from the
// MIME type when none survives sanitizing.
func (s *Store) storageName(name, mimeType string) string {
	clean := SanitizeFilename(name)
	if clean == "" {
		clean = uuid.NewString() + "." + ExtensionForMime(mimeType)
	}
	return fmt.Sprintf("%d_%s", s.clock.Now().UnixMilli(), clean)
}

// Save writes data under the uploads root and records it against messageID.
func (s *Store) Save(ctx context.Context, messageID int64, data []byte, mimeType, name string) (*models.Attachment, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = GuessMimeType(name)
	}

	path := filepath.Join(s.root, s.storageName(name, mimeType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, apperrors.NewAttachmentError(path, err)
	}

	att, err := s.repo.InsertAttachment(ctx, models.NewAttachment{
		MessageID:   messageID,
		Kind:        models.KindForMime(mimeType),
		StoragePath: path,
		MimeType:    mimeType,
		SizeBytes:   int64(len(data)),
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.WithError(rmErr).WithField("path", path).Warn("Failed to remove orphaned attachment file")
		}
		return nil, err
	}
	return att, nil
}

// Register records a file that is already on disk, such as one an operator just sent.
// An empty mimeType is inferred from the extension.
func (s *Store) Register(ctx context.Context, messageID int64, path, mimeType string) (*models.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewAttachmentError(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewAttachmentError(path, fmt.Errorf("is a directory"))
	}
	if mimeType == "" {
		mimeType = GuessMimeType(path)
	}
	return s.repo.InsertAttachment(ctx, models.NewAttachment{
		MessageID:   messageID,
		Kind:        models.KindForMime(mimeType),
		StoragePath: path,
		MimeType:    mimeType,
		SizeBytes:   info.Size(),
	})
}

// StoreUpload copies an operator upload under the uploads root without recording it;
// the row is written when the file is actually sent.
func (s *Store) StoreUpload(name string, r io.Reader) (*Upload, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	mimeType := GuessMimeType(name)
	path := filepath.Join(s.root, s.storageName(name, mimeType))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, apperrors.NewAttachmentError(path, err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxUploadBytes+1))
	closeErr := f.Close()
	if copyErr == nil && n > s.maxUploadBytes {
		copyErr = apperrors.NewValidationError("file", fmt.Sprintf("exceeds %d bytes", s.maxUploadBytes))
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(path)
		if _, ok := apperrors.As(copyErr); ok {
			return nil, copyErr
		}
		return nil, apperrors.NewAttachmentError(path, copyErr)
	}

	return &Upload{Name: filepath.Base(path), Path: path, MimeType: mimeType, Size: n}, nil
}

// ListByMessage returns a message's attachments oldest first.
func (s *Store) ListByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error) {
	return s.repo.ListAttachmentsByMessage(ctx, messageID)
}

// DeleteAllForMessage unlinks the files of a message's attachments and then
// removes the rows. Missing files are skipped and other unlink failures are
// only logged.
func (s *Store) DeleteAllForMessage(ctx context.Context, messageID int64) error {
	atts, err := s.repo.ListAttachmentsByMessage(ctx, messageID)
	if err != nil {
		return err
	}

	for _, att := range atts {
		if err := os.Remove(att.StoragePath); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"message_id":    messageID,
				"attachment_id": att.ID,
				"path":          att.StoragePath,
			}).Warn("Failed to remove attachment file")
		}
	}

	if len(atts) == 0 {
		return nil
	}
	_, err = s.repo.DeleteAttachmentsByMessage(ctx, messageID)
	return err
}

// Resolve maps an operator-supplied path, relative to the uploads root or
// absolute, to a path inside the root.
func (s *Store) Resolve(path string) (string, error) {
	resolved, err := security.ResolveWithinBase(path, s.root)
	if err != nil {
		return "", apperrors.NewValidationError("path", err.Error())
	}
	return resolved, nil
}

// GuessMimeType infers a MIME type from a file extension.
func GuessMimeType(path string) string {
	if mt, ok := constants.MimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return constants.DefaultMimeType
}

// ExtensionForMime picks the extension used to name saved media of mimeType.
func ExtensionForMime(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if ext, ok := constants.MediaExtensions[base]; ok {
		return ext
	}
	return constants.DefaultMediaExtension
}

// SanitizeFilename keeps only the base name and replaces whitespace runs with '_'.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	if name == "." || name == ".." {
		return ""
	}
	return name
}
