package store

import (
	"sort"
	"sync"
	"time"

	"github.com/replyflow/replyflow/internal/models"
)

// InMemoryStore is a thread-safe in-memory Store used in tests and for
// development without a database.
type InMemoryStore struct {
	mu            sync.RWMutex
	messages      []models.Message
	conversations map[string]*models.ConversationSummary
	configs       map[string]models.AutomationConfig
	actions       map[string]models.ActionRecord
	knowledge     map[string]models.KnowledgeDoc
	logs          []models.LogEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.ConversationSummary),
		configs:       make(map[string]models.AutomationConfig),
		actions:       make(map[string]models.ActionRecord),
		knowledge:     make(map[string]models.KnowledgeDoc),
	}
}

func convKey(accountID, contactID string) string {
	return accountID + "|" + contactID
}

// AddMessage appends a message to its conversation.
func (s *InMemoryStore) AddMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// ListMessages returns messages for a conversation in chronological order.
func (s *InMemoryStore) ListMessages(accountID, contactID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.AccountID == accountID && m.ContactID == contactID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CountInboundSince counts user messages from a contact at or after since.
func (s *InMemoryStore) CountInboundSince(accountID, contactID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.messages {
		if m.AccountID == accountID && m.ContactID == contactID &&
			m.Direction == models.DirectionUser && !m.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// UpsertConversation updates the summary for a contact, incrementing its
// message count. Takeover fields are preserved.
func (s *InMemoryStore) UpsertConversation(accountID, contactID, contactName, lastMessage string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := convKey(accountID, contactID)
	c, ok := s.conversations[key]
	if !ok {
		c = &models.ConversationSummary{AccountID: accountID, ContactID: contactID}
		s.conversations[key] = c
	}
	if contactName != "" {
		c.ContactName = contactName
	}
	c.LastMessage = lastMessage
	c.LastTimestamp = ts
	c.MessageCount++
	return nil
}

// GetConversation returns the summary for a contact, or nil if none exists.
func (s *InMemoryStore) GetConversation(accountID, contactID string) (*models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convKey(accountID, contactID)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// ListConversations returns all summaries for an account, most recent first.
func (s *InMemoryStore) ListConversations(accountID string) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ConversationSummary
	for _, c := range s.conversations {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastTimestamp.After(out[j].LastTimestamp) })
	return out, nil
}

// SetTakeover flips the human-takeover flag, creating the summary if needed.
func (s *InMemoryStore) SetTakeover(accountID, contactID string, takenOver bool, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := convKey(accountID, contactID)
	c, ok := s.conversations[key]
	if !ok {
		c = &models.ConversationSummary{AccountID: accountID, ContactID: contactID}
		s.conversations[key] = c
	}
	c.TakenOver = takenOver
	if takenOver {
		c.TakeoverOwner = owner
	} else {
		c.TakeoverOwner = ""
	}
	return nil
}

// GetAutomationConfig returns the account's config, or nil if never saved.
func (s *InMemoryStore) GetAutomationConfig(accountID string) (*models.AutomationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[accountID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// SaveAutomationConfig replaces the account's config document.
func (s *InMemoryStore) SaveAutomationConfig(cfg models.AutomationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.AccountID] = cfg
	return nil
}

// CreateAction stores a new action record.
func (s *InMemoryStore) CreateAction(a models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = a
	return nil
}

// GetAction returns an action scoped to an account, or models.ErrNotFound.
func (s *InMemoryStore) GetAction(accountID, actionID string) (*models.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID]
	if !ok || a.AccountID != accountID {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

// ListActions returns an account's actions, newest first.
func (s *InMemoryStore) ListActions(accountID string, status models.ActionStatus) ([]models.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ActionRecord
	for _, a := range s.actions {
		if a.AccountID != accountID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateActionDecision applies an admin decision and returns the updated record.
func (s *InMemoryStore) UpdateActionDecision(accountID, actionID string, status models.ActionStatus, note string, decidedAt time.Time) (*models.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[actionID]
	if !ok || a.AccountID != accountID {
		return nil, models.ErrNotFound
	}
	a.Status = status
	a.AdminNote = note
	a.UpdatedAt = decidedAt
	s.actions[actionID] = a
	return &a, nil
}

// AddKnowledgeDoc stores an extracted knowledge document.
func (s *InMemoryStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge[d.ID] = d
	return nil
}

// ListKnowledgeDocs returns an account's knowledge documents, oldest first.
func (s *InMemoryStore) ListKnowledgeDocs(accountID string) ([]models.KnowledgeDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.KnowledgeDoc
	for _, d := range s.knowledge {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetKnowledgeDocEnabled toggles a document's inclusion in prompts.
func (s *InMemoryStore) SetKnowledgeDocEnabled(accountID, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.knowledge[id]
	if !ok || d.AccountID != accountID {
		return models.ErrNotFound
	}
	d.Enabled = enabled
	s.knowledge[id] = d
	return nil
}

// DeleteKnowledgeDoc removes a document.
func (s *InMemoryStore) DeleteKnowledgeDoc(accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.knowledge[id]
	if !ok || d.AccountID != accountID {
		return models.ErrNotFound
	}
	delete(s.knowledge, id)
	return nil
}

// AddLogEntry appends an event-log entry.
func (s *InMemoryStore) AddLogEntry(e models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, e)
	return nil
}

// ListLogEntries returns an account's event-log entries, newest first.
func (s *InMemoryStore) ListLogEntries(accountID string, limit int) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LogEntry
	for _, e := range s.logs {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
