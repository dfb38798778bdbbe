// Package messaging provides outbound message dispatch to the chat network.
//
// The reply pipeline only depends on the Dispatcher interface; concrete
// implementations talk to the external WhatsApp gateway sidecar or to the
// Twilio WhatsApp API.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrUnknownDispatcher is returned by the factory for unsupported kinds.
var ErrUnknownDispatcher = errors.New("unknown dispatcher kind")

// phoneNumberRegex strips everything but digits from a recipient identifier.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Dispatcher sends outbound text to the messaging network. Delivery is best
// effort; there is no exactly-once guarantee.
type Dispatcher interface {
	// SendText sends a text message to a contact on behalf of an account.
	SendText(ctx context.Context, accountID, to, body string) error
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. It removes all non-numeric characters and validates the
// result has at least 6 digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// SentMessage records one dispatched message in the mock.
type SentMessage struct {
	AccountID string
	To        string
	Body      string
}

// MockDispatcher records sent messages for tests.
type MockDispatcher struct {
	mu   sync.Mutex
	Sent []SentMessage
	// Err, when set, is returned by every SendText call.
	Err error
}

// NewMockDispatcher creates an empty mock dispatcher.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

// SendText records the message, or fails with the configured error.
func (m *MockDispatcher) SendText(ctx context.Context, accountID, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMessage{AccountID: accountID, To: to, Body: body})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockDispatcher) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}
