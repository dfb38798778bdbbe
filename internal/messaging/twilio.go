package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the Twilio dispatcher.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string // WhatsApp number in "whatsapp:+1234567890" format
}

// TwilioOption defines a configuration option for the Twilio dispatcher.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// TwilioDispatcher sends WhatsApp messages through the Twilio REST API.
type TwilioDispatcher struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewTwilioDispatcher creates a Twilio-backed dispatcher. Credentials fall
// back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER
// environment variables.
func NewTwilioDispatcher(opts ...TwilioOption) (*TwilioDispatcher, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio dispatcher config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioDispatcher{client: client, fromWhats: cfg.FromWhats}, nil
}

// SendText sends a WhatsApp message using the Twilio API. The account id is
// unused: a Twilio dispatcher is bound to one sending number.
func (t *TwilioDispatcher) SendText(ctx context.Context, accountID, to, body string) error {
	canonicalTo, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioDispatcher recipient validation failed", "error", err, "to", to)
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + canonicalTo)
	params.SetFrom(t.fromWhats)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioDispatcher send failed", "to", canonicalTo, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}

	slog.Debug("TwilioDispatcher message sent", "to", canonicalTo)
	return nil
}

// NewDispatcher is the configuration-driven factory for dispatchers.
// Supported kinds: "gateway" (default) and "twilio".
func NewDispatcher(kind string, gatewayOpts []GatewayOption, twilioOpts []TwilioOption) (Dispatcher, error) {
	switch kind {
	case "", "gateway":
		return NewGatewayDispatcher(gatewayOpts...)
	case "twilio":
		return NewTwilioDispatcher(twilioOpts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDispatcher, kind)
	}
}
