package types

import (
	"context"
)

// WAClient is the transport surface the bridge uses.
type WAClient interface {
	SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error)
	SendMedia(ctx context.Context, chatID string, file FileData, caption string) (*SendMessageResponse, error)
	GetSessionStatus(ctx context.Context) (*Session, error)
	GetQRCode(ctx context.Context) ([]byte, string, error)
	GetGroups(ctx context.Context) ([]Group, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, string, error)
}

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event *WebhookEvent) error

// EventStream delivers transport events until the context ends or the stream breaks.
type EventStream interface {
	StreamEvents(ctx context.Context, events []string, handle EventHandler) error
}
