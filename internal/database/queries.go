package database

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (wa_id, direction, text, status, auto_replied, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	selectMessageColumns = `SELECT id, wa_id, direction, text, status, auto_replied, created_at FROM messages`

	SelectMessageByIDQuery = selectMessageColumns + ` WHERE id = ?`

	SelectInboundMessagesQuery = selectMessageColumns + `
		WHERE direction = 'inbound'
		ORDER BY created_at DESC, id DESC
	`

	SelectThreadQuery = selectMessageColumns + `
		WHERE wa_id = ?
		ORDER BY created_at ASC, id ASC
	`

	SelectStatusForUpdateQuery = `SELECT status FROM messages WHERE id = ?`

	UpdateMessageStatusQuery = `UPDATE messages SET status = ? WHERE id = ?`

	DeleteMessageQuery = `DELETE FROM messages WHERE id = ?`
)

// Attachment queries
const (
	InsertAttachmentQuery = `
		INSERT INTO attachments (message_id, type, path, mime, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	SelectAttachmentsByMessageQuery = `
		SELECT id, message_id, type, path, mime, size, created_at
		FROM attachments
		WHERE message_id = ?
		ORDER BY created_at ASC, id ASC
	`

	DeleteAttachmentsByMessageQuery = `DELETE FROM attachments WHERE message_id = ?`
)

// Timestamp backfill queries, keyed by the only tables the backfill may touch.
var (
	listTimestampQueries = map[string]string{
		"messages":    `SELECT id, created_at FROM messages ORDER BY id ASC`,
		"attachments": `SELECT id, created_at FROM attachments ORDER BY id ASC`,
	}

	updateTimestampQueries = map[string]string{
		"messages":    `UPDATE messages SET created_at = ? WHERE id = ?`,
		"attachments": `UPDATE attachments SET created_at = ? WHERE id = ?`,
	}
)

// TimestampTables lists the tables the backfill walks, in order.
var TimestampTables = []string{"messages", "attachments"}
