// Package gate implements the ordered chain of admission filters applied to
// every inbound message before a reply is considered.
//
// Filters run in a fixed order and each one may short-circuit processing:
// blocked contact, blocked word, schedule window, rate limit, human
// takeover. The chain is pure policy; it reads conversation state through
// the store but never writes.
package gate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/replyflow/replyflow/internal/models"
	"github.com/replyflow/replyflow/internal/store"
)

// Decision is the outcome of running the filter chain.
type Decision string

const (
	// DecisionProceed lets the message continue into the reply pipeline.
	DecisionProceed Decision = "proceed"
	// DecisionSuppress drops the message without any reply.
	DecisionSuppress Decision = "suppress"
	// DecisionTemplate answers the message with a fixed template text.
	DecisionTemplate Decision = "template"
)

// Result carries a filter decision, the template reply when the decision is
// DecisionTemplate, and a reason tag for logging.
type Result struct {
	Decision Decision
	Reply    string
	Reason   string
}

// Proceed is the zero-effect result returned by filters that do not fire.
var Proceed = Result{Decision: DecisionProceed}

// Context is the input shared by all filters for a single inbound message.
type Context struct {
	Config    models.AutomationConfig
	AccountID string
	ContactID string
	Text      string
	Now       time.Time
}

// Filter is one admission predicate. A non-Proceed result stops the chain.
type Filter interface {
	// Name identifies the filter in logs.
	Name() string
	// Evaluate inspects the message context and returns a decision. Errors
	// are storage failures and abort the whole request.
	Evaluate(gc *Context) (Result, error)
}

// Chain runs filters in their fixed configured order.
type Chain struct {
	filters []Filter
}

// NewChain builds the standard filter chain in its mandated order.
// The store is needed by the rate-limit and takeover filters.
func NewChain(st store.Store) *Chain {
	return &Chain{filters: []Filter{
		blockedContactFilter{},
		blockedWordFilter{},
		scheduleFilter{},
		rateLimitFilter{store: st},
		takeoverFilter{store: st},
	}}
}

// Run evaluates filters in order and returns the first non-Proceed result,
// or Proceed when no filter fires.
func (c *Chain) Run(gc *Context) (Result, error) {
	for _, f := range c.filters {
		res, err := f.Evaluate(gc)
		if err != nil {
			return Result{}, fmt.Errorf("gate filter %s failed: %w", f.Name(), err)
		}
		if res.Decision != DecisionProceed {
			slog.Info("Gate filter fired", "filter", f.Name(), "decision", res.Decision, "contact", gc.ContactID, "reason", res.Reason)
			return res, nil
		}
	}
	return Proceed, nil
}

// blockedContactFilter suppresses messages from contacts on the block list.
type blockedContactFilter struct{}

func (blockedContactFilter) Name() string { return "blocked_contact" }

func (blockedContactFilter) Evaluate(gc *Context) (Result, error) {
	for _, blocked := range gc.Config.Security.BlockedContacts {
		if strings.TrimSpace(blocked) == gc.ContactID {
			return Result{Decision: DecisionSuppress, Reason: "contact blocked"}, nil
		}
	}
	return Proceed, nil
}

// blockedWordFilter suppresses messages containing a configured blocked
// word as a case-insensitive substring.
type blockedWordFilter struct{}

func (blockedWordFilter) Name() string { return "blocked_word" }

func (blockedWordFilter) Evaluate(gc *Context) (Result, error) {
	lowered := strings.ToLower(gc.Text)
	for _, word := range gc.Config.Security.BlockedWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if strings.Contains(lowered, word) {
			return Result{Decision: DecisionSuppress, Reason: "blocked word: " + word}, nil
		}
	}
	return Proceed, nil
}

// scheduleFilter replies with the outside-hours template when the current
// time of day falls outside the configured window. Bounds are inclusive on
// both ends; a window with start > end spans midnight.
type scheduleFilter struct{}

func (scheduleFilter) Name() string { return "schedule" }

func (scheduleFilter) Evaluate(gc *Context) (Result, error) {
	rule := gc.Config.Security.Schedule
	if !rule.Enabled {
		return Proceed, nil
	}
	start, err := parseClockMinutes(rule.Start)
	if err != nil {
		slog.Warn("Schedule filter skipped: invalid start time", "start", rule.Start, "error", err)
		return Proceed, nil
	}
	end, err := parseClockMinutes(rule.End)
	if err != nil {
		slog.Warn("Schedule filter skipped: invalid end time", "end", rule.End, "error", err)
		return Proceed, nil
	}

	nowMinutes := gc.Now.Hour()*60 + gc.Now.Minute()
	inside := nowMinutes >= start && nowMinutes <= end
	if start > end {
		inside = nowMinutes >= start || nowMinutes <= end
	}
	if inside {
		return Proceed, nil
	}

	reply := rule.OutsideHoursMessage
	if reply == "" {
		reply = "We are currently closed. We'll get back to you during business hours."
	}
	return Result{Decision: DecisionTemplate, Reply: reply, Reason: "outside schedule window"}, nil
}

// rateLimitFilter suppresses a contact who already sent the configured
// number of messages within the trailing window. It runs before the current
// message is persisted, so the count never includes the message being
// processed.
type rateLimitFilter struct {
	store store.Store
}

func (rateLimitFilter) Name() string { return "rate_limit" }

func (f rateLimitFilter) Evaluate(gc *Context) (Result, error) {
	sec := gc.Config.Security
	if !sec.RateLimitEnabled || sec.RateLimitMsgs <= 0 || sec.RateLimitWindow <= 0 {
		return Proceed, nil
	}
	since := gc.Now.Add(-time.Duration(sec.RateLimitWindow) * time.Minute)
	count, err := f.store.CountInboundSince(gc.AccountID, gc.ContactID, since)
	if err != nil {
		return Result{}, err
	}
	if count >= sec.RateLimitMsgs {
		return Result{
			Decision: DecisionSuppress,
			Reason:   fmt.Sprintf("rate limit reached: %d messages in %d minutes", count, sec.RateLimitWindow),
		}, nil
	}
	return Proceed, nil
}

// takeoverFilter suppresses automation while a human operator owns the
// conversation.
type takeoverFilter struct {
	store store.Store
}

func (takeoverFilter) Name() string { return "takeover" }

func (f takeoverFilter) Evaluate(gc *Context) (Result, error) {
	conv, err := f.store.GetConversation(gc.AccountID, gc.ContactID)
	if err != nil {
		return Result{}, err
	}
	if conv != nil && conv.TakenOver {
		return Result{Decision: DecisionSuppress, Reason: "human takeover active"}, nil
	}
	return Proceed, nil
}

// parseClockMinutes converts a "15:04" wall-clock string to minutes since
// midnight.
func parseClockMinutes(clock string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
