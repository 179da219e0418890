package privacy

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// MaskConversationID hides all but the last four characters of the user part of a chat id.
// Example: "6281234567890@c.us" -> "*********7890@c.us"
func MaskConversationID(id string) string {
	if id == "" {
		return ""
	}

	if at := strings.Index(id, "@"); at >= 0 {
		return maskString(id[:at], 4) + id[at:]
	}
	return maskString(id, 4)
}

// MaskMessageID masks a transport message id while keeping its shape.
// Example: "false_6281234567890@c.us_3EB0A1B2C3D4" -> "false_*********7890@c.us_********C3D4"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	parts := strings.SplitN(messageID, "_", 3)
	if len(parts) == 3 && strings.Contains(parts[1], "@") {
		return parts[0] + "_" + MaskConversationID(parts[1]) + "_" + maskString(parts[2], 4)
	}
	return maskString(messageID, 8)
}

// MaskText replaces message content with a length marker.
func MaskText(text string) string {
	if text == "" {
		return ""
	}
	return "[hidden]"
}

// MaskFields applies masking to the well-known identifier fields of a log entry.
func MaskFields(fields logrus.Fields) logrus.Fields {
	if fields == nil {
		return nil
	}

	masked := make(logrus.Fields, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "conversation_id", "chat_id", "wa_id", "from", "to":
			masked[k] = MaskConversationID(s)
		case "transport_message_id":
			masked[k] = MaskMessageID(s)
		case "text", "body":
			masked[k] = MaskText(s)
		default:
			masked[k] = v
		}
	}
	return masked
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
