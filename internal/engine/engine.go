// Package engine orchestrates the per-message reply pipeline: gate, intent
// detection, prompt composition, generative call, and persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/replyflow/replyflow/internal/gate"
	"github.com/replyflow/replyflow/internal/genai"
	"github.com/replyflow/replyflow/internal/intent"
	"github.com/replyflow/replyflow/internal/models"
	"github.com/replyflow/replyflow/internal/prompt"
	"github.com/replyflow/replyflow/internal/store"
	"github.com/replyflow/replyflow/internal/workflow"
)

// Engine is the message-decision pipeline. One Handle call is one unit of
// work; calls for the same (account, contact) pair are serialized so the
// rate-limit check and conversation history stay coherent, while unrelated
// contacts proceed concurrently.
type Engine struct {
	store     store.Store
	gate      *gate.Chain
	generator genai.Generator
	workflow  *workflow.Workflow

	// Now is the reference clock, overridable in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Engine wired to the given collaborators.
func New(st store.Store, gen genai.Generator, wf *workflow.Workflow) *Engine {
	return &Engine{
		store:     st,
		gate:      gate.NewChain(st),
		generator: gen,
		workflow:  wf,
		Now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// contactLock returns the mutex serializing one conversation.
func (e *Engine) contactLock(accountID, contactID string) *sync.Mutex {
	key := accountID + "|" + contactID
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Handle processes one inbound message and returns the reply text, or ""
// when automation is intentionally silent. Generative-backend failures are
// downgraded to the account's fallback message; storage failures propagate
// and fail the request.
func (e *Engine) Handle(ctx context.Context, in models.InboundMessage) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	lock := e.contactLock(in.AccountID, in.ContactID)
	lock.Lock()
	defer lock.Unlock()

	now := e.Now()
	if in.ReceivedAt > 0 {
		now = time.Unix(in.ReceivedAt, 0).UTC()
	}

	cfg, err := e.store.GetAutomationConfig(in.AccountID)
	if err != nil {
		return "", fmt.Errorf("failed to load automation config: %w", err)
	}
	if cfg == nil {
		def := models.DefaultAutomationConfig(in.AccountID)
		cfg = &def
	}

	// Kill switch: a disabled account still records history but never replies.
	if !cfg.Enabled {
		if err := e.persistMessage(in.AccountID, in.ContactID, in.ContactName, models.DirectionUser, in.Text, now); err != nil {
			return "", err
		}
		slog.Info("Engine automation disabled, suppressing", "account", in.AccountID, "contact", in.ContactID)
		return "", nil
	}

	// The gate runs before the inbound message is persisted so the
	// rate-limit count never includes the message being processed.
	res, err := e.gate.Run(&gate.Context{
		Config:    *cfg,
		AccountID: in.AccountID,
		ContactID: in.ContactID,
		Text:      in.Text,
		Now:       now,
	})
	if err != nil {
		return "", err
	}

	// Inbound messages are persisted regardless of the gate outcome so
	// conversation history stays complete.
	if err := e.persistMessage(in.AccountID, in.ContactID, in.ContactName, models.DirectionUser, in.Text, now); err != nil {
		return "", err
	}
	name := in.ContactName
	if name == "" {
		name = in.ContactID
	}
	e.recordLog(in.AccountID, models.LogLevelInfo, fmt.Sprintf("Message from %s: %s", name, truncate(in.Text, 60)))

	switch res.Decision {
	case gate.DecisionSuppress:
		slog.Info("Engine suppressed message", "account", in.AccountID, "contact", in.ContactID, "reason", res.Reason)
		return "", nil
	case gate.DecisionTemplate:
		if err := e.persistMessage(in.AccountID, in.ContactID, "", models.DirectionAssistant, res.Reply, e.Now()); err != nil {
			return "", err
		}
		slog.Info("Engine replied with template", "account", in.AccountID, "contact", in.ContactID, "reason", res.Reason)
		return res.Reply, nil
	}

	if bt := intent.Detect(in.Text, cfg.BookingTypes); bt != nil {
		action, err := e.workflow.Create(in.AccountID, in.ContactID, in.ContactName, in.Text, *bt)
		if err != nil {
			return "", err
		}
		reply := fmt.Sprintf(
			"Thanks! We've registered your %s request (ref %s). Our team will review it and confirm shortly.",
			bt.DisplayName, action.Reference(),
		)
		if err := e.persistMessage(in.AccountID, in.ContactID, "", models.DirectionAssistant, reply, e.Now()); err != nil {
			return "", err
		}
		slog.Info("Engine registered booking intent", "account", in.AccountID, "contact", in.ContactID, "kind", bt.ID, "action", action.ID)
		return reply, nil
	}

	// Knowledge docs are loaded here, not inside the generate step, so a
	// storage failure fails the request instead of masquerading as a
	// backend outage and triggering the fallback.
	docs, err := e.store.ListKnowledgeDocs(in.AccountID)
	if err != nil {
		return "", fmt.Errorf("failed to load knowledge docs: %w", err)
	}

	reply, err := e.generateReply(ctx, cfg, docs, in.Text)
	if err != nil {
		// Backend failures are never surfaced to the contact.
		slog.Error("Engine generative call failed, using fallback", "error", err, "account", in.AccountID, "contact", in.ContactID)
		e.recordLog(in.AccountID, models.LogLevelError, fmt.Sprintf("Generative backend error: %v", err))
		reply = cfg.FallbackMessage
	}
	if err := e.persistMessage(in.AccountID, in.ContactID, "", models.DirectionAssistant, reply, e.Now()); err != nil {
		return "", err
	}
	slog.Info("Engine replied", "account", in.AccountID, "contact", in.ContactID, "reply_length", len(reply))
	e.recordLog(in.AccountID, models.LogLevelInfo, fmt.Sprintf("Replied to %s: %s", name, truncate(reply, 60)))
	return reply, nil
}

// generateReply composes instructions and invokes the generative backend.
func (e *Engine) generateReply(ctx context.Context, cfg *models.AutomationConfig, docs []models.KnowledgeDoc, text string) (string, error) {
	instructions := prompt.Compose(prompt.Input{
		Persona:         cfg.Persona,
		BotName:         cfg.BotName,
		StrictGrounding: cfg.StrictGrounding,
		Tone:            cfg.Tone,
		ResponseLength:  cfg.ResponseLength,
		Language:        cfg.Language,
		BusinessContext: cfg.BusinessContext,
		FAQ:             cfg.FAQ,
		Knowledge:       docs,
	})

	return e.generator.Generate(ctx, genai.Request{
		Instructions: instructions,
		UserText:     text,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		TopP:         cfg.TopP,
	})
}

// recordLog appends an event-log entry. Best-effort: the dashboard log is
// advisory and must never fail the message being processed.
func (e *Engine) recordLog(accountID string, level models.LogLevel, message string) {
	entry := models.LogEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Level:     level,
		Message:   message,
		Timestamp: e.Now().UTC(),
	}
	if err := e.store.AddLogEntry(entry); err != nil {
		slog.Error("Engine failed to record log entry", "error", err, "account", accountID)
	}
}

// truncate caps s at n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// persistMessage appends a message and updates the conversation summary.
func (e *Engine) persistMessage(accountID, contactID, contactName string, direction models.MessageDirection, text string, ts time.Time) error {
	msg := models.Message{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ContactID: contactID,
		Direction: direction,
		Text:      text,
		Timestamp: ts,
	}
	if err := e.store.AddMessage(msg); err != nil {
		return fmt.Errorf("failed to persist %s message: %w", direction, err)
	}
	if err := e.store.UpsertConversation(accountID, contactID, contactName, text, ts); err != nil {
		return fmt.Errorf("failed to update conversation summary: %w", err)
	}
	return nil
}
