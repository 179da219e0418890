package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	apperrors "csbridge/internal/errors"
	"csbridge/internal/migrations"
	"csbridge/internal/models"
	"csbridge/internal/security"
	"csbridge/internal/timestamps"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the conversation store: messages and the attachments they own.
type Database struct {
	db    *sql.DB
	clock timestamps.Clock
}

// Option configures a Database.
type Option func(*Database)

// WithClock overrides the clock used to stamp created_at.
func WithClock(clock timestamps.Clock) Option {
	return func(d *Database) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func New(dbPath string, opts ...Option) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	d := &Database{db: db, clock: timestamps.SystemClock()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection for health probes.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return apperrors.NewPersistenceError("ping", err)
	}
	return nil
}

// storeError passes AppErrors through and turns anything else into a persistence failure.
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	return apperrors.NewPersistenceError(operation, err)
}

// InsertMessage stores a new message stamped with the current time and returns its id.
func (d *Database) InsertMessage(ctx context.Context, msg models.NewMessage) (int64, error) {
	if msg.ConversationID == "" {
		return 0, apperrors.NewValidationError("conversation_id", "is required")
	}
	if msg.Direction != models.DirectionInbound && msg.Direction != models.DirectionOutbound {
		return 0, apperrors.NewValidationError("direction", fmt.Sprintf("unknown direction %q", msg.Direction))
	}
	if msg.Status == "" {
		msg.Status = models.StatusPending
	}
	if !msg.Status.Valid() {
		return 0, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", msg.Status))
	}

	createdAt := timestamps.FormatStorage(d.clock.Now())
	id, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, InsertMessageQuery,
			msg.ConversationID,
			string(msg.Direction),
			msg.Text,
			string(msg.Status),
			msg.AutoReplied,
			createdAt,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}, "insert message")
	if err != nil {
		return 0, storeError("insert message", err)
	}
	return id, nil
}

// UpdateStatus moves a message to status. Re-applying the current status is a
// no-op and done never goes back to pending.
func (d *Database) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	if !status.Valid() {
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var raw string
		err = tx.QueryRowContext(ctx, SelectStatusForUpdateQuery, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("message", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return err
		}

		current := models.ParseStatus(raw)
		if current == models.StatusDone && status == models.StatusPending {
			return apperrors.NewTransitionError(string(current), string(status))
		}
		if current == status && raw == string(status) {
			return nil
		}

		if _, err := tx.ExecContext(ctx, UpdateMessageStatusQuery, string(status), id); err != nil {
			return err
		}
		return tx.Commit()
	}, "update status")
	return storeError("update status", err)
}

// GetMessage returns the message with id, or nil when there is none.
func (d *Database) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	msg, err := retryableDBOperation(ctx, func() (*models.Message, error) {
		row := d.db.QueryRowContext(ctx, SelectMessageByIDQuery, id)
		m, err := scanMessage(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return m, err
	}, "get message")
	if err != nil {
		return nil, storeError("get message", err)
	}
	return msg, nil
}

// ListInbound returns every inbound message, most recent first.
func (d *Database) ListInbound(ctx context.Context) ([]models.Message, error) {
	msgs, err := d.queryMessages(ctx, "list inbound", SelectInboundMessagesQuery)
	if err != nil {
		return nil, err
	}
	timestamps.SortInbound(msgs)
	return msgs, nil
}

// GetThread returns a conversation oldest first.
func (d *Database) GetThread(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs, err := d.queryMessages(ctx, "get thread", SelectThreadQuery, conversationID)
	if err != nil {
		return nil, err
	}
	timestamps.SortThread(msgs)
	return msgs, nil
}

// DeleteMessage removes a message and its attachment rows in one transaction.
func (d *Database) DeleteMessage(ctx context.Context, id int64) error {
	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, DeleteAttachmentsByMessageQuery, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, DeleteMessageQuery, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("message", strconv.FormatInt(id, 10))
		}
		return tx.Commit()
	}, "delete message")
	return storeError("delete message", err)
}

// InsertAttachment records a stored file against its owning message.
func (d *Database) InsertAttachment(ctx context.Context, att models.NewAttachment) (*models.Attachment, error) {
	if att.Kind == "" {
		att.Kind = models.KindForMime(att.MimeType)
	}
	createdAt := timestamps.FormatStorage(d.clock.Now())

	id, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, InsertAttachmentQuery,
			att.MessageID,
			string(att.Kind),
			att.StoragePath,
			att.MimeType,
			att.SizeBytes,
			createdAt,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}, "insert attachment")
	if err != nil {
		return nil, storeError("insert attachment", err)
	}

	return &models.Attachment{
		ID:           id,
		MessageID:    att.MessageID,
		Kind:         att.Kind,
		StoragePath:  att.StoragePath,
		MimeType:     att.MimeType,
		SizeBytes:    att.SizeBytes,
		CreatedAt:    timestamps.ParseStored(createdAt),
		CreatedAtRaw: createdAt,
	}, nil
}

// ListAttachmentsByMessage returns a message's attachments oldest first.
func (d *Database) ListAttachmentsByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error) {
	atts, err := retryableDBOperation(ctx, func() ([]models.Attachment, error) {
		rows, err := d.db.QueryContext(ctx, SelectAttachmentsByMessageQuery, messageID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.Attachment
		for rows.Next() {
			var a models.Attachment
			var kind string
			if err := rows.Scan(&a.ID, &a.MessageID, &kind, &a.StoragePath, &a.MimeType, &a.SizeBytes, &a.CreatedAtRaw); err != nil {
				return nil, err
			}
			a.Kind = models.AttachmentKind(kind)
			a.CreatedAt = timestamps.ParseStored(a.CreatedAtRaw)
			out = append(out, a)
		}
		return out, rows.Err()
	}, "list attachments")
	if err != nil {
		return nil, storeError("list attachments", err)
	}
	timestamps.SortAttachments(atts)
	return atts, nil
}

// DeleteAttachmentsByMessage removes the attachment rows of a message and reports how many went.
func (d *Database) DeleteAttachmentsByMessage(ctx context.Context, messageID int64) (int64, error) {
	n, err := retryableDBOperation(ctx, func() (int64, error) {
		res, err := d.db.ExecContext(ctx, DeleteAttachmentsByMessageQuery, messageID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}, "delete attachments")
	if err != nil {
		return 0, storeError("delete attachments", err)
	}
	return n, nil
}

// ListTimestamps returns the raw created_at of every row in table.
func (d *Database) ListTimestamps(ctx context.Context, table string) ([]models.TimestampRow, error) {
	query, ok := listTimestampQueries[table]
	if !ok {
		return nil, apperrors.NewValidationError("table", fmt.Sprintf("unknown table %q", table))
	}

	out, err := retryableDBOperation(ctx, func() ([]models.TimestampRow, error) {
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.TimestampRow
		for rows.Next() {
			var r models.TimestampRow
			var raw sql.NullString
			if err := rows.Scan(&r.ID, &raw); err != nil {
				return nil, err
			}
			r.Raw = raw.String
			out = append(out, r)
		}
		return out, rows.Err()
	}, "list timestamps")
	if err != nil {
		return nil, storeError("list timestamps", err)
	}
	return out, nil
}

// UpdateTimestamp overwrites the created_at of one row.
func (d *Database) UpdateTimestamp(ctx context.Context, table string, id int64, value string) error {
	query, ok := updateTimestampQueries[table]
	if !ok {
		return apperrors.NewValidationError("table", fmt.Sprintf("unknown table %q", table))
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, value, id)
		return err
	}, "update timestamp")
	return storeError("update timestamp", err)
}

func (d *Database) queryMessages(ctx context.Context, operation, query string, args ...interface{}) ([]models.Message, error) {
	msgs, err := retryableDBOperation(ctx, func() ([]models.Message, error) {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.Message
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *m)
		}
		return out, rows.Err()
	}, operation)
	if err != nil {
		return nil, storeError(operation, err)
	}
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m         models.Message
		direction string
		text      sql.NullString
		status    string
		created   sql.NullString
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &direction, &text, &status, &m.AutoReplied, &created); err != nil {
		return nil, err
	}
	m.Direction = models.Direction(direction)
	if text.Valid {
		t := text.String
		m.Text = &t
	}
	m.Status = models.ParseStatus(status)
	m.CreatedAtRaw = created.String
	m.CreatedAt = timestamps.ParseStored(m.CreatedAtRaw)
	return &m, nil
}
