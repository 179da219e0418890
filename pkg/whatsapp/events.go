package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"csbridge/pkg/whatsapp/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// eventReadLimit bounds a single websocket frame; message events with inline
// media references stay well below it.
const eventReadLimit = 4 << 20

// StreamEvents subscribes to the session's websocket and hands every frame to
// handle, one at a time. It returns when ctx ends, the socket closes or handle
// returns an error.
func (c *WhatsAppClient) StreamEvents(ctx context.Context, events []string, handle types.EventHandler) error {
	wsURL, err := c.websocketURL(events)
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set(types.HeaderAPIKey, c.apiKey)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(eventReadLimit)

	for {
		var event types.WebhookEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("event stream read failed: %w", err)
		}

		if err := handle(ctx, &event); err != nil {
			conn.Close(websocket.StatusNormalClosure, "handler stopped")
			return err
		}
	}
}

func (c *WhatsAppClient) websocketURL(events []string) (string, error) {
	u, err := url.Parse(c.baseURL + types.EndpointWebsocket)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("base URL must be http(s) or ws(s)")
	}

	q := u.Query()
	q.Set("session", c.sessionName)
	for _, e := range events {
		q.Add("events", strings.TrimSpace(e))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
