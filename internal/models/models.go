// Package models defines the core data structures for ReplyFlow.
//
// It includes the per-account automation configuration, conversation and
// message records, booking types, action records, and the API payload types
// shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// MessageDirection indicates who authored a message in a conversation.
type MessageDirection string

const (
	// DirectionUser marks a message received from the contact.
	DirectionUser MessageDirection = "user"
	// DirectionAssistant marks a message produced by the bot or an operator.
	DirectionAssistant MessageDirection = "assistant"
)

// Validation constants for input validation
const (
	// MaxInboundTextLength defines the maximum allowed length for inbound message text
	MaxInboundTextLength = 4096
	// MaxAdminNoteLength defines the maximum allowed length for action admin notes
	MaxAdminNoteLength = 1000
	// KnowledgeFragmentBudget is the per-document character cap applied when
	// knowledge text is folded into generative instructions.
	KnowledgeFragmentBudget = 5000
)

// Error variables for better error handling and testability
var (
	ErrNotFound            = errors.New("record not found")
	ErrEmptyAccountID      = errors.New("account id cannot be empty")
	ErrEmptyContactID      = errors.New("contact id cannot be empty")
	ErrEmptyText           = errors.New("message text cannot be empty")
	ErrTextTooLong         = errors.New("message text exceeds maximum length")
	ErrInvalidActionStatus = errors.New("invalid action status")
	ErrAdminNoteTooLong    = errors.New("admin note exceeds maximum length")
	ErrEmptyFilename       = errors.New("knowledge document filename cannot be empty")
	ErrEmptyDocumentText   = errors.New("knowledge document text cannot be empty")
)

// Message is a single chat message, append-only per conversation.
type Message struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	ContactID string           `json:"contact_id"`
	Direction MessageDirection `json:"direction"`
	Text      string           `json:"text"`
	Timestamp time.Time        `json:"timestamp"`
}

// ConversationSummary is the rolled-up view of a contact's conversation,
// keyed by (account_id, contact_id) and upserted on every message pair.
type ConversationSummary struct {
	AccountID     string    `json:"account_id"`
	ContactID     string    `json:"contact_id"`
	ContactName   string    `json:"contact_name,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastTimestamp time.Time `json:"last_timestamp"`
	MessageCount  int       `json:"message_count"`
	TakenOver     bool      `json:"taken_over"`
	TakeoverOwner string    `json:"takeover_owner,omitempty"`
}

// BookingType defines one service-request category recognized by keyword.
// Types are evaluated in declared order; the first enabled type with a
// matching keyword wins.
type BookingType struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"display_name"`
	Enabled          bool     `json:"enabled"`
	Keywords         []string `json:"keywords"`
	ConfirmationText string   `json:"confirmation_text"`
}

// ScheduleRule restricts automation to a daily time window. Start and End
// are wall-clock times in "15:04" format, inclusive on both ends.
type ScheduleRule struct {
	Enabled             bool   `json:"enabled"`
	Start               string `json:"start,omitempty"`
	End                 string `json:"end,omitempty"`
	OutsideHoursMessage string `json:"outside_hours_message,omitempty"`
}

// SecurityRules groups the admission filters applied before any reply is
// considered.
type SecurityRules struct {
	BlockedContacts  []string     `json:"blocked_contacts,omitempty"`
	BlockedWords     []string     `json:"blocked_words,omitempty"`
	Schedule         ScheduleRule `json:"schedule"`
	RateLimitEnabled bool         `json:"rate_limit_enabled"`
	RateLimitMsgs    int          `json:"rate_limit_msgs,omitempty"`
	RateLimitWindow  int          `json:"rate_limit_window_minutes,omitempty"`
}

// AutomationConfig is the full per-account automation document. It is
// loaded fresh per message and replaced wholesale on save; fields are
// additive and defaulted so older documents deserialize without loss.
type AutomationConfig struct {
	AccountID string `json:"account_id"`
	// Enabled is the account-wide automation kill switch. When false the
	// pipeline stores inbound messages but never replies.
	Enabled bool   `json:"ai_enabled"`
	BotName string `json:"bot_name"`
	Persona string `json:"persona"`

	Provider    string  `json:"model_provider"`
	Model       string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int64   `json:"max_tokens"`
	TopP        float64 `json:"top_p"`

	Tone            string `json:"tone"`
	ResponseLength  string `json:"response_length"`
	Language        string `json:"language"`
	StrictGrounding bool   `json:"strict_grounding"`

	BusinessContext string `json:"business_context,omitempty"`
	FAQ             string `json:"faq,omitempty"`
	FallbackMessage string `json:"fallback_message"`

	BookingTypes []BookingType `json:"booking_types,omitempty"`
	Security     SecurityRules `json:"security"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultAutomationConfig returns the configuration used for accounts that
// have never saved one.
func DefaultAutomationConfig(accountID string) AutomationConfig {
	return AutomationConfig{
		AccountID:       accountID,
		Enabled:         true,
		BotName:         "AI Bot",
		Persona:         "You are a helpful and friendly virtual assistant for a business. Answer clearly and concisely.",
		Provider:        "openai",
		Model:           "gpt-4o",
		Temperature:     0.7,
		MaxTokens:       500,
		TopP:            1.0,
		Tone:            "friendly",
		ResponseLength:  "normal",
		Language:        "auto",
		FallbackMessage: "Sorry, something went wrong while processing your message. Please try again shortly.",
	}
}

// ActionStatus represents the decision state of an action record.
type ActionStatus string

const (
	// ActionStatusPending indicates the action awaits an admin decision.
	ActionStatusPending ActionStatus = "pending"
	// ActionStatusApproved indicates an admin approved the action.
	ActionStatusApproved ActionStatus = "approved"
	// ActionStatusRejected indicates an admin rejected the action.
	ActionStatusRejected ActionStatus = "rejected"
)

// IsValidActionStatus checks if the given action status is supported.
func IsValidActionStatus(s ActionStatus) bool {
	switch s {
	case ActionStatusPending, ActionStatusApproved, ActionStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final decision.
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusApproved || s == ActionStatusRejected
}

// ActionRecord tracks a detected service request from creation through an
// admin decision. Created only by intent detection; mutated only by an
// explicit admin decision.
type ActionRecord struct {
	ID          string       `json:"action_id"`
	AccountID   string       `json:"account_id"`
	ContactID   string       `json:"contact_id"`
	DisplayName string       `json:"display_name,omitempty"`
	ActionKind  string       `json:"action_kind"`
	TriggerText string       `json:"trigger_text"`
	Status      ActionStatus `json:"status"`
	AdminNote   string       `json:"admin_note,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Reference returns the short human-readable reference used in
// confirmation messages, derived from the action id.
func (a ActionRecord) Reference() string {
	id := strings.ReplaceAll(a.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// KnowledgeDoc holds already-extracted document text used as grounding
// context for generated replies.
type KnowledgeDoc struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"text"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks a knowledge document before it is stored.
func (d *KnowledgeDoc) Validate() error {
	if d.AccountID == "" {
		return ErrEmptyAccountID
	}
	if d.Filename == "" {
		return ErrEmptyFilename
	}
	if d.Text == "" {
		return ErrEmptyDocumentText
	}
	return nil
}

// LogLevel classifies persisted event-log entries.
type LogLevel string

const (
	// LogLevelInfo marks routine pipeline events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarning marks recoverable problems.
	LogLevelWarning LogLevel = "warning"
	// LogLevelError marks failures worth surfacing on the dashboard.
	LogLevelError LogLevel = "error"
)

// LogEntry is one persisted event-log line, shown on the admin dashboard.
// Entries are append-only and best-effort: a failed write never fails the
// operation that produced it.
type LogEntry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundMessage is the webhook payload delivered by the messaging gateway.
type InboundMessage struct {
	AccountID   string `json:"account_id"`
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name,omitempty"`
	Text        string `json:"text"`
	ReceivedAt  int64  `json:"received_at,omitempty"` // unix seconds; zero means "now"
}

// Validate performs boundary validation on an inbound webhook payload.
// Malformed payloads are rejected here and never enter the pipeline.
func (m *InboundMessage) Validate() error {
	if m.AccountID == "" {
		return ErrEmptyAccountID
	}
	if m.ContactID == "" {
		return ErrEmptyContactID
	}
	if m.Text == "" {
		return ErrEmptyText
	}
	if len(m.Text) > MaxInboundTextLength {
		return ErrTextTooLong
	}
	return nil
}

// ActionDecisionRequest is the payload for deciding a pending action.
type ActionDecisionRequest struct {
	Status    ActionStatus `json:"status"`
	AdminNote string       `json:"admin_note,omitempty"`
}

// Validate checks an action decision payload.
func (r *ActionDecisionRequest) Validate() error {
	if !r.Status.IsTerminal() {
		return ErrInvalidActionStatus
	}
	if len(r.AdminNote) > MaxAdminNoteLength {
		return ErrAdminNoteTooLong
	}
	return nil
}

// TakeoverRequest is the payload for flipping a conversation's human
// takeover flag.
type TakeoverRequest struct {
	TakenOver bool   `json:"taken_over"`
	Owner     string `json:"owner,omitempty"`
}

// SendMessageRequest is the payload for a manual operator send.
type SendMessageRequest struct {
	AccountID string `json:"account_id"`
	ContactID string `json:"contact_id"`
	Text      string `json:"text"`
}

// Validate checks a manual send payload.
func (r *SendMessageRequest) Validate() error {
	if r.AccountID == "" {
		return ErrEmptyAccountID
	}
	if r.ContactID == "" {
		return ErrEmptyContactID
	}
	if r.Text == "" {
		return ErrEmptyText
	}
	return nil
}
