package models

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// legacyStatusDone is the literal older deployments wrote for resolved rows.
const legacyStatusDone = "selesai"

// ParseStatus maps a stored status literal onto Status. Unknown values read as pending
// so that nothing silently disappears from the operator queue.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusDone), legacyStatusDone:
		return StatusDone
	default:
		return StatusPending
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// KindForMime derives the attachment kind from a MIME type.
func KindForMime(mimeType string) AttachmentKind {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return AttachmentImage
	}
	return AttachmentFile
}

// Message is one row of a conversation.
type Message struct {
	ID             int64      `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"wa_id"`
	Direction      Direction  `json:"direction" db:"direction"`
	Text           *string    `json:"text" db:"text"`
	Status         Status     `json:"status" db:"status"`
	AutoReplied    bool       `json:"auto_replied" db:"auto_replied"`
	CreatedAt      *time.Time `json:"created_at" db:"-"`
	CreatedAtRaw   string     `json:"created_at_raw" db:"created_at"`
}

// NewMessage carries the caller-supplied fields of a message insert.
type NewMessage struct {
	ConversationID string
	Direction      Direction
	Text           *string
	Status         Status
	AutoReplied    bool
}

// Attachment is a stored media file owned by a message.
type Attachment struct {
	ID           int64          `json:"id" db:"id"`
	MessageID    int64          `json:"message_id" db:"message_id"`
	Kind         AttachmentKind `json:"kind" db:"type"`
	StoragePath  string         `json:"storage_path" db:"path"`
	MimeType     string         `json:"mime_type" db:"mime"`
	SizeBytes    int64          `json:"size_bytes" db:"size"`
	CreatedAt    *time.Time     `json:"created_at" db:"-"`
	CreatedAtRaw string         `json:"created_at_raw" db:"created_at"`
}

// NewAttachment carries the caller-supplied fields of an attachment insert.
type NewAttachment struct {
	MessageID   int64
	Kind        AttachmentKind
	StoragePath string
	MimeType    string
	SizeBytes   int64
}

// TimestampRow is the (id, created_at) projection used by the timestamp backfill.
type TimestampRow struct {
	ID  int64
	Raw string
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
