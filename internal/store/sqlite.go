// Package store provides storage backends for ReplyFlow.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/replyflow/replyflow/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, account_id, contact_id, direction, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.AccountID, m.ContactID, m.Direction, m.Text, m.Timestamp,
	)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "contact", m.ContactID)
		return fmt.Errorf("failed to insert message for %s: %w", m.ContactID, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "contact", m.ContactID, "direction", m.Direction)
	return nil
}

func (s *SQLiteStore) ListMessages(accountID, contactID string, limit int) ([]models.Message, error) {
	query := `SELECT id, account_id, contact_id, direction, text, timestamp FROM messages
			  WHERE account_id = ? AND contact_id = ? ORDER BY timestamp`
	args := []interface{}{accountID, contactID}
	if limit > 0 {
		// Take the newest N rows, then re-sort ascending.
		query = `SELECT id, account_id, contact_id, direction, text, timestamp FROM (
					SELECT id, account_id, contact_id, direction, text, timestamp FROM messages
					WHERE account_id = ? AND contact_id = ? ORDER BY timestamp DESC LIMIT ?
				 ) ORDER BY timestamp`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "contact", contactID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore ListMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

func (s *SQLiteStore) CountInboundSince(accountID, contactID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE account_id = ? AND contact_id = ? AND direction = ? AND timestamp >= ?`,
		accountID, contactID, models.DirectionUser, since,
	).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountInboundSince failed", "error", err, "contact", contactID)
		return 0, fmt.Errorf("failed to count inbound messages: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) UpsertConversation(accountID, contactID, contactName, lastMessage string, ts time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (account_id, contact_id, contact_name, last_message, last_timestamp, message_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(account_id, contact_id) DO UPDATE SET
			contact_name = CASE WHEN excluded.contact_name != '' THEN excluded.contact_name ELSE conversations.contact_name END,
			last_message = excluded.last_message,
			last_timestamp = excluded.last_timestamp,
			message_count = conversations.message_count + 1`,
		accountID, contactID, contactName, lastMessage, ts,
	)
	if err != nil {
		slog.Error("SQLiteStore UpsertConversation failed", "error", err, "contact", contactID)
		return fmt.Errorf("failed to upsert conversation for %s: %w", contactID, err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(accountID, contactID string) (*models.ConversationSummary, error) {
	row := s.db.QueryRow(
		`SELECT account_id, contact_id, contact_name, last_message, last_timestamp, message_count, taken_over, takeover_owner
		 FROM conversations WHERE account_id = ? AND contact_id = ?`,
		accountID, contactID,
	)
	c, err := scanConversation(row)
	if err != nil {
		if errorIsNoRows(err) {
			return nil, nil
		}
		slog.Error("SQLiteStore GetConversation failed", "error", err, "contact", contactID)
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListConversations(accountID string) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(
		`SELECT account_id, contact_id, contact_name, last_message, last_timestamp, message_count, taken_over, takeover_owner
		 FROM conversations WHERE account_id = ? ORDER BY last_timestamp DESC`,
		accountID,
	)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.ConversationSummary
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			slog.Error("SQLiteStore ListConversations scan failed", "error", err)
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return conversations, nil
}

func (s *SQLiteStore) SetTakeover(accountID, contactID string, takenOver bool, owner string) error {
	if !takenOver {
		owner = ""
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (account_id, contact_id, taken_over, takeover_owner)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, contact_id) DO UPDATE SET
			taken_over = excluded.taken_over,
			takeover_owner = excluded.takeover_owner`,
		accountID, contactID, takenOver, owner,
	)
	if err != nil {
		slog.Error("SQLiteStore SetTakeover failed", "error", err, "contact", contactID)
		return fmt.Errorf("failed to set takeover for %s: %w", contactID, err)
	}
	slog.Debug("SQLiteStore SetTakeover succeeded", "contact", contactID, "taken_over", takenOver)
	return nil
}

func (s *SQLiteStore) GetAutomationConfig(accountID string) (*models.AutomationConfig, error) {
	var configJSON string
	err := s.db.QueryRow(`SELECT config FROM automation_configs WHERE account_id = ?`, accountID).Scan(&configJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetAutomationConfig not found", "account", accountID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAutomationConfig failed", "error", err, "account", accountID)
		return nil, fmt.Errorf("failed to query automation config: %w", err)
	}

	// Unmarshal onto defaults so older documents pick up newer fields.
	cfg := models.DefaultAutomationConfig(accountID)
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		slog.Error("SQLiteStore GetAutomationConfig unmarshal failed", "error", err, "account", accountID)
		return nil, fmt.Errorf("failed to decode automation config: %w", err)
	}
	cfg.AccountID = accountID
	return &cfg, nil
}

func (s *SQLiteStore) SaveAutomationConfig(cfg models.AutomationConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		slog.Error("SQLiteStore SaveAutomationConfig marshal failed", "error", err, "account", cfg.AccountID)
		return fmt.Errorf("failed to encode automation config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO automation_configs (account_id, config, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		cfg.AccountID, string(configJSON), cfg.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveAutomationConfig failed", "error", err, "account", cfg.AccountID)
		return fmt.Errorf("failed to save automation config: %w", err)
	}
	slog.Debug("SQLiteStore SaveAutomationConfig succeeded", "account", cfg.AccountID)
	return nil
}

func (s *SQLiteStore) CreateAction(a models.ActionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO actions (id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AccountID, a.ContactID, a.DisplayName, a.ActionKind, a.TriggerText, a.Status, nilIfEmpty(a.AdminNote), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateAction failed", "error", err, "action", a.ID)
		return fmt.Errorf("failed to insert action %s: %w", a.ID, err)
	}
	slog.Debug("SQLiteStore CreateAction succeeded", "action", a.ID, "kind", a.ActionKind)
	return nil
}

func (s *SQLiteStore) GetAction(accountID, actionID string) (*models.ActionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at
		 FROM actions WHERE account_id = ? AND id = ?`,
		accountID, actionID,
	)
	a, err := scanAction(row)
	if err != nil {
		if errorIsNoRows(err) {
			return nil, models.ErrNotFound
		}
		slog.Error("SQLiteStore GetAction failed", "error", err, "action", actionID)
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) ListActions(accountID string, status models.ActionStatus) ([]models.ActionRecord, error) {
	query := `SELECT id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at
			  FROM actions WHERE account_id = ?`
	args := []interface{}{accountID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListActions query failed", "error", err)
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.ActionRecord
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			slog.Error("SQLiteStore ListActions scan failed", "error", err)
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action rows: %w", err)
	}
	return actions, nil
}

func (s *SQLiteStore) UpdateActionDecision(accountID, actionID string, status models.ActionStatus, note string, decidedAt time.Time) (*models.ActionRecord, error) {
	res, err := s.db.Exec(
		`UPDATE actions SET status = ?, admin_note = ?, updated_at = ? WHERE account_id = ? AND id = ?`,
		status, nilIfEmpty(note), decidedAt, accountID, actionID,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateActionDecision failed", "error", err, "action", actionID)
		return nil, fmt.Errorf("failed to update action %s: %w", actionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return nil, models.ErrNotFound
	}
	slog.Debug("SQLiteStore UpdateActionDecision succeeded", "action", actionID, "status", status)
	return s.GetAction(accountID, actionID)
}

func (s *SQLiteStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	_, err := s.db.Exec(
		`INSERT INTO knowledge_docs (id, account_id, filename, content, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.AccountID, d.Filename, d.Text, d.Enabled, d.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddKnowledgeDoc failed", "error", err, "filename", d.Filename)
		return fmt.Errorf("failed to insert knowledge doc %s: %w", d.Filename, err)
	}
	return nil
}

func (s *SQLiteStore) ListKnowledgeDocs(accountID string) ([]models.KnowledgeDoc, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, filename, content, enabled, created_at FROM knowledge_docs
		 WHERE account_id = ? ORDER BY created_at`,
		accountID,
	)
	if err != nil {
		slog.Error("SQLiteStore ListKnowledgeDocs query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge docs: %w", err)
	}
	defer rows.Close()

	var docs []models.KnowledgeDoc
	for rows.Next() {
		d, err := scanKnowledgeDoc(rows)
		if err != nil {
			slog.Error("SQLiteStore ListKnowledgeDocs scan failed", "error", err)
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge doc rows: %w", err)
	}
	return docs, nil
}

func (s *SQLiteStore) SetKnowledgeDocEnabled(accountID, id string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE knowledge_docs SET enabled = ? WHERE account_id = ? AND id = ?`, enabled, accountID, id)
	if err != nil {
		slog.Error("SQLiteStore SetKnowledgeDocEnabled failed", "error", err, "doc", id)
		return fmt.Errorf("failed to update knowledge doc %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteKnowledgeDoc(accountID, id string) error {
	res, err := s.db.Exec(`DELETE FROM knowledge_docs WHERE account_id = ? AND id = ?`, accountID, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteKnowledgeDoc failed", "error", err, "doc", id)
		return fmt.Errorf("failed to delete knowledge doc %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AddLogEntry(e models.LogEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO event_logs (id, account_id, level, message, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Level, e.Message, e.Timestamp,
	)
	if err != nil {
		slog.Error("SQLiteStore AddLogEntry failed", "error", err, "account", e.AccountID)
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListLogEntries(accountID string, limit int) ([]models.LogEntry, error) {
	query := `SELECT id, account_id, level, message, timestamp FROM event_logs
			  WHERE account_id = ? ORDER BY timestamp DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListLogEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			slog.Error("SQLiteStore ListLogEntries scan failed", "error", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log entry rows: %w", err)
	}
	return entries, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
