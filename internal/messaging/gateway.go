package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultGatewayTimeout bounds each HTTP call to the gateway sidecar.
const DefaultGatewayTimeout = 10 * time.Second

// GatewayDispatcher sends messages through the external WhatsApp gateway
// sidecar over HTTP. The sidecar owns the network connection and pairing;
// this client only speaks its JSON send endpoint.
type GatewayDispatcher struct {
	baseURL string
	client  *http.Client
}

// GatewayOpts holds configuration options for the gateway dispatcher.
type GatewayOpts struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// GatewayOption defines a configuration option for the gateway dispatcher.
type GatewayOption func(*GatewayOpts)

// WithGatewayURL sets the sidecar base URL (e.g. "http://localhost:3001").
func WithGatewayURL(url string) GatewayOption {
	return func(o *GatewayOpts) { o.BaseURL = url }
}

// WithGatewayTimeout overrides the per-request timeout.
func WithGatewayTimeout(d time.Duration) GatewayOption {
	return func(o *GatewayOpts) { o.Timeout = d }
}

// WithGatewayHTTPClient injects a custom HTTP client (used in tests).
func WithGatewayHTTPClient(c *http.Client) GatewayOption {
	return func(o *GatewayOpts) { o.Client = c }
}

// NewGatewayDispatcher creates a dispatcher for the gateway sidecar.
func NewGatewayDispatcher(opts ...GatewayOption) (*GatewayDispatcher, error) {
	var cfg GatewayOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGatewayTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GatewayDispatcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}, nil
}

// gatewaySendRequest is the sidecar's send payload.
type gatewaySendRequest struct {
	AccountID string `json:"account_id,omitempty"`
	To        string `json:"to"`
	Message   string `json:"message"`
}

// SendText posts the message to the sidecar's /send endpoint.
func (g *GatewayDispatcher) SendText(ctx context.Context, accountID, to, body string) error {
	payload, err := json.Marshal(gatewaySendRequest{AccountID: accountID, To: to, Message: body})
	if err != nil {
		return fmt.Errorf("failed to encode gateway send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Error("GatewayDispatcher send failed", "error", err, "to", to)
		return fmt.Errorf("gateway send to %s failed: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("GatewayDispatcher send rejected", "status", resp.StatusCode, "to", to, "body", string(respBody))
		return fmt.Errorf("gateway send to %s rejected with status %d", to, resp.StatusCode)
	}

	slog.Debug("GatewayDispatcher message sent", "to", to)
	return nil
}
