package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/replyflow/replyflow/internal/models"
)

// errorIsNoRows reports whether err is (or wraps) sql.ErrNoRows.
func errorIsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMessage scans a message row in column order id, account_id,
// contact_id, direction, text, timestamp.
func scanMessage(row rowScanner) (models.Message, error) {
	var m models.Message
	if err := row.Scan(&m.ID, &m.AccountID, &m.ContactID, &m.Direction, &m.Text, &m.Timestamp); err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	return m, nil
}

// scanConversation scans a conversation summary row in column order
// account_id, contact_id, contact_name, last_message, last_timestamp,
// message_count, taken_over, takeover_owner.
func scanConversation(row rowScanner) (models.ConversationSummary, error) {
	var c models.ConversationSummary
	var lastTimestamp sql.NullTime
	err := row.Scan(
		&c.AccountID, &c.ContactID, &c.ContactName, &c.LastMessage,
		&lastTimestamp, &c.MessageCount, &c.TakenOver, &c.TakeoverOwner,
	)
	if err != nil {
		return c, fmt.Errorf("scan conversation failed: %w", err)
	}
	if lastTimestamp.Valid {
		c.LastTimestamp = lastTimestamp.Time
	}
	return c, nil
}

// scanAction scans an action row in column order id, account_id, contact_id,
// display_name, action_kind, trigger_text, status, admin_note, created_at,
// updated_at.
func scanAction(row rowScanner) (models.ActionRecord, error) {
	var a models.ActionRecord
	var adminNote sql.NullString
	err := row.Scan(
		&a.ID, &a.AccountID, &a.ContactID, &a.DisplayName, &a.ActionKind,
		&a.TriggerText, &a.Status, &adminNote, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, fmt.Errorf("scan action failed: %w", err)
	}
	a.AdminNote = adminNote.String
	return a, nil
}

// scanKnowledgeDoc scans a knowledge document row in column order id,
// account_id, filename, content, enabled, created_at.
func scanKnowledgeDoc(row rowScanner) (models.KnowledgeDoc, error) {
	var d models.KnowledgeDoc
	if err := row.Scan(&d.ID, &d.AccountID, &d.Filename, &d.Text, &d.Enabled, &d.CreatedAt); err != nil {
		return d, fmt.Errorf("scan knowledge doc failed: %w", err)
	}
	return d, nil
}

// scanLogEntry scans an event-log row in column order id, account_id, level,
// message, timestamp.
func scanLogEntry(row rowScanner) (models.LogEntry, error) {
	var e models.LogEntry
	if err := row.Scan(&e.ID, &e.AccountID, &e.Level, &e.Message, &e.Timestamp); err != nil {
		return e, fmt.Errorf("scan log entry failed: %w", err)
	}
	return e, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
