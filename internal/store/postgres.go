// Package store provides storage backends for ReplyFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/replyflow/replyflow/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, account_id, contact_id, direction, text, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.AccountID, m.ContactID, m.Direction, m.Text, m.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "contact", m.ContactID)
		return fmt.Errorf("failed to insert message for %s: %w", m.ContactID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "contact", m.ContactID, "direction", m.Direction)
	return nil
}

func (s *PostgresStore) ListMessages(accountID, contactID string, limit int) ([]models.Message, error) {
	query := `SELECT id, account_id, contact_id, direction, text, timestamp FROM messages
			  WHERE account_id = $1 AND contact_id = $2 ORDER BY timestamp`
	args := []interface{}{accountID, contactID}
	if limit > 0 {
		query = `SELECT id, account_id, contact_id, direction, text, timestamp FROM (
					SELECT id, account_id, contact_id, direction, text, timestamp FROM messages
					WHERE account_id = $1 AND contact_id = $2 ORDER BY timestamp DESC LIMIT $3
				 ) latest ORDER BY timestamp`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err, "contact", contactID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore ListMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) CountInboundSince(accountID, contactID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE account_id = $1 AND contact_id = $2 AND direction = $3 AND timestamp >= $4`,
		accountID, contactID, models.DirectionUser, since,
	).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountInboundSince failed", "error", err, "contact", contactID)
		return 0, fmt.Errorf("failed to count inbound messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpsertConversation(accountID, contactID, contactName, lastMessage string, ts time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (account_id, contact_id, contact_name, last_message, last_timestamp, message_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (account_id, contact_id) DO UPDATE SET
			contact_name = CASE WHEN EXCLUDED.contact_name != '' THEN EXCLUDED.contact_name ELSE conversations.contact_name END,
			last_message = EXCLUDED.last_message,
			last_timestamp = EXCLUDED.last_timestamp,
			message_count = conversations.message_count + 1`,
		accountID, contactID, contactName, lastMessage, ts,
	)
	if err != nil {
		slog.Error("PostgresStore UpsertConversation failed", "error", err, "contact", contactID)
		return fmt.Errorf("failed to upsert conversation for %s: %w", contactID, err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(accountID, contactID string) (*models.ConversationSummary, error) {
	row := s.db.QueryRow(
		`SELECT account_id, contact_id, contact_name, last_message, last_timestamp, message_count, taken_over, takeover_owner
		 FROM conversations WHERE account_id = $1 AND contact_id = $2`,
		accountID, contactID,
	)
	c, err := scanConversation(row)
	if err != nil {
		if errorIsNoRows(err) {
			return nil, nil
		}
		slog.Error("PostgresStore GetConversation failed", "error", err, "contact", contactID)
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListConversations(accountID string) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(
		`SELECT account_id, contact_id, contact_name, last_message, last_timestamp, message_count, taken_over, takeover_owner
		 FROM conversations WHERE account_id = $1 ORDER BY last_timestamp DESC NULLS LAST`,
		accountID,
	)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.ConversationSummary
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			slog.Error("PostgresStore ListConversations scan failed", "error", err)
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return conversations, nil
}

func (s *PostgresStore) SetTakeover(accountID, contactID string, takenOver bool, owner string) error {
	if !takenOver {
		owner = ""
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (account_id, contact_id, taken_over, takeover_owner)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, contact_id) DO UPDATE SET
			taken_over = EXCLUDED.taken_over,
			takeover_owner = EXCLUDED.takeover_owner`,
		accountID, contactID, takenOver, owner,
	)
	if err != nil {
		slog.Error("PostgresStore SetTakeover failed", "error", err, "contact", contactID)
		return fmt.Errorf("failed to set takeover for %s: %w", contactID, err)
	}
	slog.Debug("PostgresStore SetTakeover succeeded", "contact", contactID, "taken_over", takenOver)
	return nil
}

func (s *PostgresStore) GetAutomationConfig(accountID string) (*models.AutomationConfig, error) {
	var configJSON string
	err := s.db.QueryRow(`SELECT config FROM automation_configs WHERE account_id = $1`, accountID).Scan(&configJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetAutomationConfig not found", "account", accountID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAutomationConfig failed", "error", err, "account", accountID)
		return nil, fmt.Errorf("failed to query automation config: %w", err)
	}

	cfg := models.DefaultAutomationConfig(accountID)
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		slog.Error("PostgresStore GetAutomationConfig unmarshal failed", "error", err, "account", accountID)
		return nil, fmt.Errorf("failed to decode automation config: %w", err)
	}
	cfg.AccountID = accountID
	return &cfg, nil
}

func (s *PostgresStore) SaveAutomationConfig(cfg models.AutomationConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		slog.Error("PostgresStore SaveAutomationConfig marshal failed", "error", err, "account", cfg.AccountID)
		return fmt.Errorf("failed to encode automation config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO automation_configs (account_id, config, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		cfg.AccountID, string(configJSON), cfg.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveAutomationConfig failed", "error", err, "account", cfg.AccountID)
		return fmt.Errorf("failed to save automation config: %w", err)
	}
	slog.Debug("PostgresStore SaveAutomationConfig succeeded", "account", cfg.AccountID)
	return nil
}

func (s *PostgresStore) CreateAction(a models.ActionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO actions (id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.AccountID, a.ContactID, a.DisplayName, a.ActionKind, a.TriggerText, a.Status, nilIfEmpty(a.AdminNote), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateAction failed", "error", err, "action", a.ID)
		return fmt.Errorf("failed to insert action %s: %w", a.ID, err)
	}
	slog.Debug("PostgresStore CreateAction succeeded", "action", a.ID, "kind", a.ActionKind)
	return nil
}

func (s *PostgresStore) GetAction(accountID, actionID string) (*models.ActionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at
		 FROM actions WHERE account_id = $1 AND id = $2`,
		accountID, actionID,
	)
	a, err := scanAction(row)
	if err != nil {
		if errorIsNoRows(err) {
			return nil, models.ErrNotFound
		}
		slog.Error("PostgresStore GetAction failed", "error", err, "action", actionID)
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListActions(accountID string, status models.ActionStatus) ([]models.ActionRecord, error) {
	query := `SELECT id, account_id, contact_id, display_name, action_kind, trigger_text, status, admin_note, created_at, updated_at
			  FROM actions WHERE account_id = $1`
	args := []interface{}{accountID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListActions query failed", "error", err)
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.ActionRecord
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			slog.Error("PostgresStore ListActions scan failed", "error", err)
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action rows: %w", err)
	}
	return actions, nil
}

func (s *PostgresStore) UpdateActionDecision(accountID, actionID string, status models.ActionStatus, note string, decidedAt time.Time) (*models.ActionRecord, error) {
	res, err := s.db.Exec(
		`UPDATE actions SET status = $1, admin_note = $2, updated_at = $3 WHERE account_id = $4 AND id = $5`,
		status, nilIfEmpty(note), decidedAt, accountID, actionID,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateActionDecision failed", "error", err, "action", actionID)
		return nil, fmt.Errorf("failed to update action %s: %w", actionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return nil, models.ErrNotFound
	}
	slog.Debug("PostgresStore UpdateActionDecision succeeded", "action", actionID, "status", status)
	return s.GetAction(accountID, actionID)
}

func (s *PostgresStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	_, err := s.db.Exec(
		`INSERT INTO knowledge_docs (id, account_id, filename, content, enabled, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.AccountID, d.Filename, d.Text, d.Enabled, d.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddKnowledgeDoc failed", "error", err, "filename", d.Filename)
		return fmt.Errorf("failed to insert knowledge doc %s: %w", d.Filename, err)
	}
	return nil
}

func (s *PostgresStore) ListKnowledgeDocs(accountID string) ([]models.KnowledgeDoc, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, filename, content, enabled, created_at FROM knowledge_docs
		 WHERE account_id = $1 ORDER BY created_at`,
		accountID,
	)
	if err != nil {
		slog.Error("PostgresStore ListKnowledgeDocs query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge docs: %w", err)
	}
	defer rows.Close()

	var docs []models.KnowledgeDoc
	for rows.Next() {
		d, err := scanKnowledgeDoc(rows)
		if err != nil {
			slog.Error("PostgresStore ListKnowledgeDocs scan failed", "error", err)
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge doc rows: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) SetKnowledgeDocEnabled(accountID, id string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE knowledge_docs SET enabled = $1 WHERE account_id = $2 AND id = $3`, enabled, accountID, id)
	if err != nil {
		slog.Error("PostgresStore SetKnowledgeDocEnabled failed", "error", err, "doc", id)
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

func (s *PostgresStore) DeleteKnowledgeDoc(accountID, id string) error {
	res, err := s.db.Exec(`DELETE FROM knowledge_docs WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		slog.Error("PostgresStore DeleteKnowledgeDoc failed", "error", err, "doc", id)
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

func (s *PostgresStore) AddLogEntry(e models.LogEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO event_logs (id, account_id, level, message, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.AccountID, e.Level, e.Message, e.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore AddLogEntry failed", "error", err, "account", e.AccountID)
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogEntries(accountID string, limit int) ([]models.LogEntry, error) {
	query := `SELECT id, account_id, level, message, timestamp FROM event_logs
			  WHERE account_id = $1 ORDER BY timestamp DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListLogEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			slog.Error("PostgresStore ListLogEntries scan failed", "error", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log entry rows: %w", err)
	}
	return entries, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
