// Package workflow tracks detected service requests ("bookings") from
// creation through an explicit admin decision, and sends the resulting
// confirmation or rejection messages.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/replyflow/replyflow/internal/messaging"
	"github.com/replyflow/replyflow/internal/models"
	"github.com/replyflow/replyflow/internal/store"
)

// DefaultRejectionTemplate is sent when an admin rejects an action.
const DefaultRejectionTemplate = "Thank you for your request. Unfortunately we are unable to confirm it at this time."

// Workflow is the action state machine: pending -> approved | rejected.
// Re-deciding an already-terminal action is permitted and overwrites the
// previous decision.
type Workflow struct {
	store      store.Store
	dispatcher messaging.Dispatcher

	// Now is the reference clock, overridable in tests.
	Now func() time.Time
}

// New creates a Workflow over the given store and dispatcher.
func New(st store.Store, d messaging.Dispatcher) *Workflow {
	return &Workflow{store: st, dispatcher: d, Now: time.Now}
}

// Create records a new pending action for a detected booking intent.
func (w *Workflow) Create(accountID, contactID, contactLabel, triggerText string, bt models.BookingType) (models.ActionRecord, error) {
	now := w.Now()
	action := models.ActionRecord{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ContactID:   contactID,
		DisplayName: contactLabel,
		ActionKind:  bt.ID,
		TriggerText: triggerText,
		Status:      models.ActionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := w.store.CreateAction(action); err != nil {
		return models.ActionRecord{}, fmt.Errorf("failed to create action: %w", err)
	}
	slog.Info("Workflow action created", "action", action.ID, "kind", action.ActionKind, "contact", contactID)
	return action, nil
}

// List returns an account's actions, optionally filtered by status.
func (w *Workflow) List(accountID string, status models.ActionStatus) ([]models.ActionRecord, error) {
	if status != "" && !models.IsValidActionStatus(status) {
		return nil, models.ErrInvalidActionStatus
	}
	return w.store.ListActions(accountID, status)
}

// Decide applies an admin decision to an action. The action must exist for
// the account (models.ErrNotFound otherwise); there is no precondition on
// its current status. On approval the booking type's confirmation text is
// dispatched to the originating contact, on rejection a fixed template;
// the admin note, when present, is appended to either. Dispatch is best
// effort: failures are logged and never roll back the transition.
func (w *Workflow) Decide(ctx context.Context, accountID, actionID string, status models.ActionStatus, note string) (*models.ActionRecord, error) {
	if !status.IsTerminal() {
		return nil, models.ErrInvalidActionStatus
	}

	action, err := w.store.UpdateActionDecision(accountID, actionID, status, note, w.Now())
	if err != nil {
		return nil, err
	}
	slog.Info("Workflow action decided", "action", actionID, "status", status)

	body := w.decisionMessage(accountID, action)
	if err := w.dispatcher.SendText(ctx, accountID, action.ContactID, body); err != nil {
		slog.Error("Workflow decision dispatch failed", "error", err, "action", actionID, "contact", action.ContactID)
	} else if err := w.recordOutbound(accountID, action.ContactID, body); err != nil {
		slog.Error("Workflow decision message not recorded", "error", err, "action", actionID)
	}

	return action, nil
}

// decisionMessage builds the follow-up text for a decided action.
func (w *Workflow) decisionMessage(accountID string, action *models.ActionRecord) string {
	var body string
	switch action.Status {
	case models.ActionStatusApproved:
		body = w.confirmationText(accountID, action.ActionKind)
	default:
		body = DefaultRejectionTemplate
	}
	if action.AdminNote != "" {
		body += "\n" + action.AdminNote
	}
	return body
}

// confirmationText resolves the confirmation text of the booking type that
// created the action, falling back to a generic confirmation when the type
// has since been removed from the config.
func (w *Workflow) confirmationText(accountID, actionKind string) string {
	cfg, err := w.store.GetAutomationConfig(accountID)
	if err != nil {
		slog.Error("Workflow failed to load config for confirmation text", "error", err, "account", accountID)
	}
	if cfg != nil {
		for _, bt := range cfg.BookingTypes {
			if bt.ID == actionKind && bt.ConfirmationText != "" {
				return bt.ConfirmationText
			}
		}
	}
	return "Your request has been confirmed."
}

// recordOutbound appends the dispatched decision message to the
// conversation history.
func (w *Workflow) recordOutbound(accountID, contactID, body string) error {
	now := w.Now()
	msg := models.Message{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ContactID: contactID,
		Direction: models.DirectionAssistant,
		Text:      body,
		Timestamp: now,
	}
	if err := w.store.AddMessage(msg); err != nil {
		return err
	}
	return w.store.UpsertConversation(accountID, contactID, "", body, now)
}
