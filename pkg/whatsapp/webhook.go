package whatsapp

import (
	"encoding/json"
	"fmt"

	"csbridge/pkg/whatsapp/types"
)

// ParseWebhookEvent decodes a webhook body or websocket frame.
func ParseWebhookEvent(body []byte) (*types.WebhookEvent, error) {
	var event types.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook event: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook event has no type")
	}
	return &event, nil
}

// DecodeMessage extracts the message payload of a message event.
func DecodeMessage(event *types.WebhookEvent) (*types.MessagePayload, error) {
	if event.Event != types.EventMessage && event.Event != types.EventMessageAny {
		return nil, fmt.Errorf("event %q is not a message event", event.Event)
	}
	var msg types.MessagePayload
	if err := json.Unmarshal(event.Payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message payload: %w", err)
	}
	if msg.From == "" {
		return nil, fmt.Errorf("message payload has no sender")
	}
	return &msg, nil
}
