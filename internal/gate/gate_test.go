package gate

import (
	"testing"
	"time"

	"github.com/replyflow/replyflow/internal/models"
	"github.com/replyflow/replyflow/internal/store"
)

func newContext(cfg models.AutomationConfig, text string, now time.Time) *Context {
	return &Context{
		Config:    cfg,
		AccountID: "acc",
		ContactID: "555123456",
		Text:      text,
		Now:       now,
	}
}

func TestChainProceedsByDefault(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")

	res, err := chain.Run(newContext(cfg, "hello there", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("expected proceed, got %q (%s)", res.Decision, res.Reason)
	}
}

func TestBlockedContactSuppresses(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.BlockedContacts = []string{" 555123456 ", "999"}

	res, err := chain.Run(newContext(cfg, "hello", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionSuppress {
		t.Errorf("expected suppress for blocked contact, got %q", res.Decision)
	}
}

func TestBlockedWordSuppresses(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.BlockedWords = []string{"Refund", ""}

	res, err := chain.Run(newContext(cfg, "I want a REFUND now", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionSuppress {
		t.Errorf("expected suppress for blocked word, got %q", res.Decision)
	}

	res, err = chain.Run(newContext(cfg, "all good thanks", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("expected proceed for clean text, got %q", res.Decision)
	}
}

func TestScheduleWindowBoundaries(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.Schedule = models.ScheduleRule{
		Enabled:             true,
		Start:               "09:00",
		End:                 "18:00",
		OutsideHoursMessage: "Closed, back tomorrow.",
	}

	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		clock string
		want  Decision
	}{
		{"09:00", DecisionProceed},  // inclusive start
		{"18:00", DecisionProceed},  // inclusive end
		{"12:30", DecisionProceed},
		{"08:59", DecisionTemplate},
		{"18:01", DecisionTemplate},
	}
	for _, tc := range cases {
		t.Run(tc.clock, func(t *testing.T) {
			parsed, err := time.Parse("15:04", tc.clock)
			if err != nil {
				t.Fatalf("bad test clock: %v", err)
			}
			now := day.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute)
			res, err := chain.Run(newContext(cfg, "hi", now))
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if res.Decision != tc.want {
				t.Errorf("at %s expected %q, got %q", tc.clock, tc.want, res.Decision)
			}
			if res.Decision == DecisionTemplate && res.Reply != "Closed, back tomorrow." {
				t.Errorf("expected configured outside-hours message, got %q", res.Reply)
			}
		})
	}
}

func TestScheduleOvernightWindow(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.Schedule = models.ScheduleRule{Enabled: true, Start: "22:00", End: "06:00"}

	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	res, err := chain.Run(newContext(cfg, "hi", day.Add(23*time.Hour)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("23:00 is inside an overnight 22:00-06:00 window, got %q", res.Decision)
	}

	res, err = chain.Run(newContext(cfg, "hi", day.Add(3*time.Hour)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("03:00 is inside an overnight 22:00-06:00 window, got %q", res.Decision)
	}

	res, err = chain.Run(newContext(cfg, "hi", day.Add(12*time.Hour)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionTemplate {
		t.Errorf("12:00 is outside an overnight 22:00-06:00 window, got %q", res.Decision)
	}
	if res.Reply == "" {
		t.Error("expected default outside-hours message when none configured")
	}
}

func TestScheduleInvalidClockFailsOpen(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.Schedule = models.ScheduleRule{Enabled: true, Start: "not-a-time", End: "18:00"}

	res, err := chain.Run(newContext(cfg, "hi", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("invalid schedule must fail open, got %q", res.Decision)
	}
}

func TestRateLimitSuppressesAtThreshold(t *testing.T) {
	st := store.NewInMemoryStore()
	chain := NewChain(st)
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.RateLimitEnabled = true
	cfg.Security.RateLimitMsgs = 3
	cfg.Security.RateLimitWindow = 1 // minute

	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	addInbound := func(ts time.Time) {
		if err := st.AddMessage(models.Message{AccountID: "acc", ContactID: "555123456", Direction: models.DirectionUser, Text: "x", Timestamp: ts}); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	// Two prior messages inside the window: third is allowed.
	addInbound(now.Add(-40 * time.Second))
	addInbound(now.Add(-20 * time.Second))
	res, err := chain.Run(newContext(cfg, "third", now))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("third message within window should proceed, got %q", res.Decision)
	}

	// Three prior messages inside the window: fourth is suppressed.
	addInbound(now.Add(-10 * time.Second))
	res, err = chain.Run(newContext(cfg, "fourth", now))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionSuppress {
		t.Errorf("fourth message within window should be suppressed, got %q", res.Decision)
	}

	// Messages outside the window do not count.
	res, err = chain.Run(newContext(cfg, "later", now.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("expired window should proceed, got %q", res.Decision)
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	st := store.NewInMemoryStore()
	chain := NewChain(st)
	cfg := models.DefaultAutomationConfig("acc")

	now := time.Now()
	for i := 0; i < 50; i++ {
		if err := st.AddMessage(models.Message{AccountID: "acc", ContactID: "555123456", Direction: models.DirectionUser, Text: "x", Timestamp: now}); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}
	res, err := chain.Run(newContext(cfg, "hi", now))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("rate limit disabled must never suppress, got %q", res.Decision)
	}
}

func TestTakeoverSuppresses(t *testing.T) {
	st := store.NewInMemoryStore()
	chain := NewChain(st)
	cfg := models.DefaultAutomationConfig("acc")

	if err := st.SetTakeover("acc", "555123456", true, "agent"); err != nil {
		t.Fatalf("SetTakeover failed: %v", err)
	}
	res, err := chain.Run(newContext(cfg, "hi", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionSuppress {
		t.Errorf("taken-over conversation must suppress, got %q", res.Decision)
	}

	if err := st.SetTakeover("acc", "555123456", false, ""); err != nil {
		t.Fatalf("SetTakeover failed: %v", err)
	}
	res, err = chain.Run(newContext(cfg, "hi", time.Now()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionProceed {
		t.Errorf("released takeover must proceed, got %q", res.Decision)
	}
}

// A blocked contact outside business hours is suppressed, not templated:
// the contact filter runs first.
func TestFilterOrderBlockedContactBeforeSchedule(t *testing.T) {
	chain := NewChain(store.NewInMemoryStore())
	cfg := models.DefaultAutomationConfig("acc")
	cfg.Security.BlockedContacts = []string{"555123456"}
	cfg.Security.Schedule = models.ScheduleRule{Enabled: true, Start: "09:00", End: "18:00"}

	night := time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC)
	res, err := chain.Run(newContext(cfg, "hi", night))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Decision != DecisionSuppress {
		t.Errorf("blocked contact must win over schedule, got %q", res.Decision)
	}
	if res.Reply != "" {
		t.Error("suppressed messages must not carry a template reply")
	}
}
