package service

// Logging standards for csbridge.
//
// Field names below are used by every component so that log queries can follow
// one inbound event from the gate to the recorded reply.

const (
	// Identifiers
	LogFieldConversationID     = "conversation_id"
	LogFieldMessageID          = "message_id"
	LogFieldTransportMessageID = "transport_message_id"
	LogFieldAttachmentID       = "attachment_id"
	LogFieldSession            = "session"

	// Pipeline
	LogFieldComponent = "component"
	LogFieldOperation = "operation"
	LogFieldStage     = "stage"
	LogFieldReason    = "reason"
	LogFieldOrigin    = "origin"
	LogFieldFallback  = "fallback"

	// Media
	LogFieldFilePath = "file_path"
	LogFieldMimeType = "mime_type"
	LogFieldSize     = "size_bytes"

	// Performance and retries
	LogFieldDuration = "duration_ms"
	LogFieldAttempt  = "attempt"
	LogFieldBackoff  = "backoff"
)

// Intake stages, logged under LogFieldStage.
const (
	StageReceived          = "received"
	StageGated             = "gated"
	StageRejected          = "rejected"
	StagePersisted         = "persisted"
	StageMediaStored       = "media_stored"
	StageAutoReplyComplete = "auto_reply_completed"
	StageAutoReplyFallback = "auto_reply_fallback"
	StageDispatched        = "dispatched"
	StageRecorded          = "recorded"
)

// Log level usage
//
// DEBUG: per-stage progress of an event, raw transport frames.
// INFO:  accepted events, dispatched replies, listener connect/disconnect.
// WARN:  gate rejections worth auditing, fallback replies, media failures that
//        did not abort the pipeline, reconnects.
// ERROR: an event that was dropped or a reply that could not be delivered.
