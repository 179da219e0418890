package types

import (
	"encoding/json"
	"strings"
	"time"
)

// SessionStatus is the WAHA session state.
type SessionStatus string

const (
	SessionStatusStarting  SessionStatus = "STARTING"
	SessionStatusScanQR    SessionStatus = "SCAN_QR_CODE"
	SessionStatusWorking   SessionStatus = "WORKING"
	SessionStatusStopped   SessionStatus = "STOPPED"
	SessionStatusFailed    SessionStatus = "FAILED"
	SessionStatusUndefined SessionStatus = ""
)

// Session represents a WhatsApp session
type Session struct {
	Name   string        `json:"name"`
	Status SessionStatus `json:"status"`
	Me     *struct {
		ID       string `json:"id"`
		PushName string `json:"pushName"`
	} `json:"me,omitempty"`
}

// Ready reports whether the session can send and receive.
func (s *Session) Ready() bool {
	return s != nil && s.Status == SessionStatusWorking
}

// WebhookEvent is the envelope WAHA uses for webhook posts and websocket frames.
type WebhookEvent struct {
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Event     string          `json:"event"`
	Session   string          `json:"session"`
	Payload   json.RawMessage `json:"payload"`
}

// MediaInfo describes the media attached to an inbound message.
type MediaInfo struct {
	URL      string      `json:"url"`
	Mimetype string      `json:"mimetype"`
	Filename string      `json:"filename"`
	Error    interface{} `json:"error,omitempty"`
}

// MessagePayload is the payload of a message event.
type MessagePayload struct {
	ID        string     `json:"id"`
	Timestamp int64      `json:"timestamp"`
	From      string     `json:"from"`
	FromMe    bool       `json:"fromMe"`
	To        string     `json:"to"`
	Body      string     `json:"body"`
	HasMedia  bool       `json:"hasMedia"`
	Media     *MediaInfo `json:"media,omitempty"`
}

// IsGroupMessage returns true if the message is from a group chat
func (m *MessagePayload) IsGroupMessage() bool {
	return strings.HasSuffix(m.From, "@g.us")
}

// SentAt converts the unix-seconds timestamp. Zero when absent.
func (m *MessagePayload) SentAt() time.Time {
	if m.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(m.Timestamp, 0).UTC()
}

// SendMessageRequest represents the base request for sending messages
type SendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}

// FileData represents file information for media messages
type FileData struct {
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// MediaMessageRequest represents the request for sending media messages
type MediaMessageRequest struct {
	ChatID  string   `json:"chatId"`
	File    FileData `json:"file"`
	Caption string   `json:"caption,omitempty"`
	Session string   `json:"session"`
}

// SendMessageResponse is the part of a send result the bridge keeps.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
}

// WAHAMessageResponse represents the actual WAHA API response format
type WAHAMessageResponse struct {
	ID *struct {
		FromMe     bool   `json:"fromMe"`
		Remote     string `json:"remote"`
		ID         string `json:"id"`
		Serialized string `json:"_serialized"`
	} `json:"id"`
}

// WAHAErrorResponse represents error responses from WAHA API
type WAHAErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Group represents a WhatsApp group from WAHA API
type Group struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// GetDisplayName returns the best available display name for the group
func (g *Group) GetDisplayName() string {
	if g.Subject != "" {
		return g.Subject
	}
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// ClientConfig represents the configuration for WhatsApp client
type ClientConfig struct {
	BaseURL     string        `json:"base_url" validate:"required,url"`
	APIKey      string        `json:"api_key"`
	SessionName string        `json:"session_name" validate:"required"`
	Timeout     time.Duration `json:"timeout"`
}
