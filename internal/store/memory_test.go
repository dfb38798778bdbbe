package store

import (
	"errors"
	"testing"
	"time"

	"github.com/replyflow/replyflow/internal/models"
)

func TestInMemoryStoreMessages(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := st.AddMessage(models.Message{
			ID:        "m" + string(rune('0'+i)),
			AccountID: "acc",
			ContactID: "111222333",
			Direction: models.DirectionUser,
			Text:      "hello",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	msgs, err := st.ListMessages("acc", "111222333", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Error("messages must be in chronological order")
		}
	}

	limited, err := st.ListMessages("acc", "111222333", 2)
	if err != nil {
		t.Fatalf("ListMessages with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 messages with limit, got %d", len(limited))
	}
	if !limited[1].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Error("limit must keep the newest messages")
	}

	other, err := st.ListMessages("acc", "999", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no messages for unknown contact, got %d", len(other))
	}
}

func TestInMemoryStoreCountInboundSince(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	add := func(dir models.MessageDirection, ts time.Time) {
		if err := st.AddMessage(models.Message{AccountID: "acc", ContactID: "c", Direction: dir, Text: "x", Timestamp: ts}); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	add(models.DirectionUser, base.Add(-2*time.Hour))
	add(models.DirectionUser, base.Add(-30*time.Minute))
	add(models.DirectionUser, base.Add(-10*time.Minute))
	add(models.DirectionAssistant, base.Add(-5*time.Minute))

	count, err := st.CountInboundSince("acc", "c", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountInboundSince failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 inbound messages in window, got %d", count)
	}

	// Boundary timestamp counts.
	count, err = st.CountInboundSince("acc", "c", base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("CountInboundSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected boundary message to count, got %d", count)
	}
}

func TestInMemoryStoreConversations(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := st.UpsertConversation("acc", "c1", "Alice", "hi", base); err != nil {
		t.Fatalf("UpsertConversation failed: %v", err)
	}
	if err := st.UpsertConversation("acc", "c1", "", "reply", base.Add(time.Minute)); err != nil {
		t.Fatalf("UpsertConversation failed: %v", err)
	}
	if err := st.UpsertConversation("acc", "c2", "Bob", "yo", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpsertConversation failed: %v", err)
	}

	conv, err := st.GetConversation("acc", "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation, got nil")
	}
	if conv.MessageCount != 2 {
		t.Errorf("expected message count 2, got %d", conv.MessageCount)
	}
	if conv.ContactName != "Alice" {
		t.Errorf("blank contact name must not overwrite existing, got %q", conv.ContactName)
	}
	if conv.LastMessage != "reply" {
		t.Errorf("expected last message to update, got %q", conv.LastMessage)
	}

	missing, err := st.GetConversation("acc", "nobody")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown conversation")
	}

	convs, err := st.ListConversations("acc")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ContactID != "c2" {
		t.Error("conversations must be ordered most recent first")
	}
}

func TestInMemoryStoreTakeover(t *testing.T) {
	st := NewInMemoryStore()

	// Takeover on a contact with no history creates the row.
	if err := st.SetTakeover("acc", "new-contact", true, "agent-7"); err != nil {
		t.Fatalf("SetTakeover failed: %v", err)
	}
	conv, err := st.GetConversation("acc", "new-contact")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv == nil || !conv.TakenOver || conv.TakeoverOwner != "agent-7" {
		t.Fatalf("expected taken-over conversation owned by agent-7, got %+v", conv)
	}

	if err := st.SetTakeover("acc", "new-contact", false, ""); err != nil {
		t.Fatalf("SetTakeover failed: %v", err)
	}
	conv, _ = st.GetConversation("acc", "new-contact")
	if conv.TakenOver || conv.TakeoverOwner != "" {
		t.Error("releasing takeover must clear the flag and owner")
	}
}

func TestInMemoryStoreAutomationConfig(t *testing.T) {
	st := NewInMemoryStore()

	cfg, err := st.GetAutomationConfig("acc")
	if err != nil {
		t.Fatalf("GetAutomationConfig failed: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config before first save")
	}

	saved := models.DefaultAutomationConfig("acc")
	saved.BotName = "Clara"
	saved.Security.RateLimitEnabled = true
	saved.Security.RateLimitMsgs = 3
	if err := st.SaveAutomationConfig(saved); err != nil {
		t.Fatalf("SaveAutomationConfig failed: %v", err)
	}

	cfg, err = st.GetAutomationConfig("acc")
	if err != nil {
		t.Fatalf("GetAutomationConfig failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config after save")
	}
	if cfg.BotName != "Clara" || !cfg.Security.RateLimitEnabled || cfg.Security.RateLimitMsgs != 3 {
		t.Errorf("config did not round-trip: %+v", cfg)
	}

	// Save replaces the document wholesale.
	replacement := models.DefaultAutomationConfig("acc")
	if err := st.SaveAutomationConfig(replacement); err != nil {
		t.Fatalf("SaveAutomationConfig failed: %v", err)
	}
	cfg, _ = st.GetAutomationConfig("acc")
	if cfg.BotName == "Clara" || cfg.Security.RateLimitEnabled {
		t.Error("save must replace the previous document, not merge")
	}
}

func TestInMemoryStoreActions(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	a1 := models.ActionRecord{ID: "a1", AccountID: "acc", ContactID: "c", ActionKind: "pickup", Status: models.ActionStatusPending, CreatedAt: base, UpdatedAt: base}
	a2 := models.ActionRecord{ID: "a2", AccountID: "acc", ContactID: "c", ActionKind: "visit", Status: models.ActionStatusPending, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	for _, a := range []models.ActionRecord{a1, a2} {
		if err := st.CreateAction(a); err != nil {
			t.Fatalf("CreateAction failed: %v", err)
		}
	}

	got, err := st.GetAction("acc", "a1")
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if got.ActionKind != "pickup" {
		t.Errorf("unexpected action: %+v", got)
	}

	if _, err := st.GetAction("other-acc", "a1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong account, got %v", err)
	}
	if _, err := st.GetAction("acc", "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}

	all, err := st.ListActions("acc", "")
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a2" {
		t.Errorf("expected newest-first listing, got %+v", all)
	}

	decidedAt := base.Add(time.Hour)
	updated, err := st.UpdateActionDecision("acc", "a1", models.ActionStatusApproved, "see you at 3pm", decidedAt)
	if err != nil {
		t.Fatalf("UpdateActionDecision failed: %v", err)
	}
	if updated.Status != models.ActionStatusApproved || updated.AdminNote != "see you at 3pm" || !updated.UpdatedAt.Equal(decidedAt) {
		t.Errorf("decision not applied: %+v", updated)
	}

	pending, err := st.ListActions("acc", models.ActionStatusPending)
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a2" {
		t.Errorf("expected only a2 pending, got %+v", pending)
	}

	if _, err := st.UpdateActionDecision("acc", "missing", models.ActionStatusRejected, "", decidedAt); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreKnowledgeDocs(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	d1 := models.KnowledgeDoc{ID: "d1", AccountID: "acc", Filename: "faq.txt", Text: "hours", Enabled: true, CreatedAt: base}
	d2 := models.KnowledgeDoc{ID: "d2", AccountID: "acc", Filename: "prices.txt", Text: "prices", Enabled: true, CreatedAt: base.Add(time.Minute)}
	for _, d := range []models.KnowledgeDoc{d1, d2} {
		if err := st.AddKnowledgeDoc(d); err != nil {
			t.Fatalf("AddKnowledgeDoc failed: %v", err)
		}
	}

	docs, err := st.ListKnowledgeDocs("acc")
	if err != nil {
		t.Fatalf("ListKnowledgeDocs failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d1" {
		t.Errorf("expected oldest-first listing, got %+v", docs)
	}

	if err := st.SetKnowledgeDocEnabled("acc", "d1", false); err != nil {
		t.Fatalf("SetKnowledgeDocEnabled failed: %v", err)
	}
	docs, _ = st.ListKnowledgeDocs("acc")
	if docs[0].Enabled {
		t.Error("expected d1 to be disabled")
	}

	if err := st.SetKnowledgeDocEnabled("other", "d1", true); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong account, got %v", err)
	}

	if err := st.DeleteKnowledgeDoc("acc", "d2"); err != nil {
		t.Fatalf("DeleteKnowledgeDoc failed: %v", err)
	}
	docs, _ = st.ListKnowledgeDocs("acc")
	if len(docs) != 1 {
		t.Errorf("expected 1 doc after delete, got %d", len(docs))
	}
	if err := st.DeleteKnowledgeDoc("acc", "d2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestInMemoryStoreLogEntries(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := models.LogEntry{
			ID:        string(rune('a' + i)),
			AccountID: "acc",
			Level:     models.LogLevelInfo,
			Message:   "event",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.AddLogEntry(entry); err != nil {
			t.Fatalf("AddLogEntry failed: %v", err)
		}
	}
	if err := st.AddLogEntry(models.LogEntry{ID: "x", AccountID: "other", Level: models.LogLevelError, Message: "noise", Timestamp: base}); err != nil {
		t.Fatalf("AddLogEntry failed: %v", err)
	}

	entries, err := st.ListLogEntries("acc", 0)
	if err != nil {
		t.Fatalf("ListLogEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries for acc, got %d", len(entries))
	}
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Errorf("expected newest-first ordering, got %+v", entries)
	}

	entries, _ = st.ListLogEntries("acc", 2)
	if len(entries) != 2 || entries[0].ID != "c" {
		t.Errorf("expected limit to keep the newest entries, got %+v", entries)
	}
}
