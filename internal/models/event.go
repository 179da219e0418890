package models

import (
	"context"
	"time"
)

// MediaPayload is a downloaded media blob.
type MediaPayload struct {
	Data     []byte
	MimeType string
	Filename string
}

// MediaSource lazily fetches the media attached to an inbound event.
type MediaSource interface {
	Download(ctx context.Context) (*MediaPayload, error)
}

// Content is the body of an inbound event. It is one of TextMessage, MediaMessage or
// TextWithMediaMessage.
type Content interface {
	isContent()
}

type TextMessage struct {
	Body string
}

type MediaMessage struct {
	Media MediaSource
}

type TextWithMediaMessage struct {
	Body  string
	Media MediaSource
}

func (TextMessage) isContent()          {}
func (MediaMessage) isContent()         {}
func (TextWithMediaMessage) isContent() {}

// InboundEvent is a chat message delivered by the transport.
type InboundEvent struct {
	ConversationID string
	MessageID      string
	FromMe         bool
	ReceivedAt     time.Time
	Content        Content
}

// Body returns the raw text of the event, or "" for pure-media content.
func (e InboundEvent) Body() string {
	switch c := e.Content.(type) {
	case TextMessage:
		return c.Body
	case TextWithMediaMessage:
		return c.Body
	default:
		return ""
	}
}

// Media returns the media source of the event, or nil when there is none.
func (e InboundEvent) Media() MediaSource {
	switch c := e.Content.(type) {
	case MediaMessage:
		return c.Media
	case TextWithMediaMessage:
		return c.Media
	default:
		return nil
	}
}

// HasMedia reports whether the event carries media.
func (e InboundEvent) HasMedia() bool {
	return e.Media() != nil
}

// NewContent builds the variant matching the given body and media.
func NewContent(body string, media MediaSource) Content {
	switch {
	case media != nil && body != "":
		return TextWithMediaMessage{Body: body, Media: media}
	case media != nil:
		return MediaMessage{Media: media}
	default:
		return TextMessage{Body: body}
	}
}
