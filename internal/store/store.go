// Package store provides storage backends for ReplyFlow.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL implementations that share embedded migrations per dialect.
package store

import (
	"time"

	"github.com/replyflow/replyflow/internal/models"
)

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store is the persistence boundary for messages, conversation summaries,
// automation configs, action records, and knowledge documents. Messages are
// append-only; automation configs are replaced wholesale on save.
type Store interface {
	// AddMessage appends a message to its conversation.
	AddMessage(m models.Message) error

	// ListMessages returns messages for a conversation in chronological
	// order, up to limit (0 means no limit).
	ListMessages(accountID, contactID string, limit int) ([]models.Message, error)

	// CountInboundSince counts user-direction messages from a contact with
	// timestamps at or after since.
	CountInboundSince(accountID, contactID string, since time.Time) (int, error)

	// UpsertConversation updates the conversation summary for a contact,
	// incrementing its message count. Takeover fields are preserved.
	UpsertConversation(accountID, contactID, contactName, lastMessage string, ts time.Time) error

	// GetConversation returns the summary for a contact, or nil if none exists.
	GetConversation(accountID, contactID string) (*models.ConversationSummary, error)

	// ListConversations returns all summaries for an account, most recent first.
	ListConversations(accountID string) ([]models.ConversationSummary, error)

	// SetTakeover flips the human-takeover flag for a conversation, creating
	// the summary row if the contact has no history yet.
	SetTakeover(accountID, contactID string, takenOver bool, owner string) error

	// GetAutomationConfig returns the account's config, or nil if never saved.
	GetAutomationConfig(accountID string) (*models.AutomationConfig, error)

	// SaveAutomationConfig replaces the account's config document.
	SaveAutomationConfig(cfg models.AutomationConfig) error

	// CreateAction stores a new action record.
	CreateAction(a models.ActionRecord) error

	// GetAction returns an action scoped to an account, or models.ErrNotFound.
	GetAction(accountID, actionID string) (*models.ActionRecord, error)

	// ListActions returns an account's actions, newest first, optionally
	// filtered by status ("" means all).
	ListActions(accountID string, status models.ActionStatus) ([]models.ActionRecord, error)

	// UpdateActionDecision applies an admin decision and returns the updated
	// record, or models.ErrNotFound if the action does not exist for the account.
	UpdateActionDecision(accountID, actionID string, status models.ActionStatus, note string, decidedAt time.Time) (*models.ActionRecord, error)

	// AddKnowledgeDoc stores an extracted knowledge document.
	AddKnowledgeDoc(d models.KnowledgeDoc) error

	// ListKnowledgeDocs returns an account's knowledge documents, oldest first.
	ListKnowledgeDocs(accountID string) ([]models.KnowledgeDoc, error)

	// SetKnowledgeDocEnabled toggles a document's inclusion in prompts.
	SetKnowledgeDocEnabled(accountID, id string, enabled bool) error

	// DeleteKnowledgeDoc removes a document.
	DeleteKnowledgeDoc(accountID, id string) error

	// AddLogEntry appends an event-log entry.
	AddLogEntry(e models.LogEntry) error

	// ListLogEntries returns an account's event-log entries, newest first,
	// up to limit (0 means no limit).
	ListLogEntries(accountID string, limit int) ([]models.LogEntry, error)

	// Close releases underlying resources.
	Close() error
}
