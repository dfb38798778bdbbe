// Package genai provides the generative reply backend using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Error variables for better error handling and testability
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrMissingAPIKey     = errors.New("API key not provided and OPENAI_API_KEY not set")
	ErrMissingBaseURL    = errors.New("base URL required for openai_compatible provider")
	ErrUnknownProvider   = errors.New("unknown generative provider")
)

// Default generation parameters applied when the automation config leaves
// them unset.
const (
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 30 * time.Second
)

// Request is one generation call: composed instructions, the user's message
// text, and the decoding parameters carried from the automation config.
type Request struct {
	Instructions string
	UserText     string
	Model        string
	Temperature  float64
	MaxTokens    int64
	TopP         float64
}

// Generator is the closed interface the reply pipeline depends on.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChat adapts the OpenAI SDK client to chatService.
type openaiChat struct {
	client openai.Client
}

func (c openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout bounds each generation call. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service for generating replies.
type Client struct {
	chat    chatService
	timeout time.Duration
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(requestOpts...)
	return &Client{chat: openaiChat{client: cli}, timeout: cfg.Timeout}, nil
}

// NewBackend is the configuration-driven factory selecting the provider
// implementation. Supported providers: "openai" (default) and
// "openai_compatible" (any endpoint speaking the OpenAI chat API, selected
// via WithBaseURL).
func NewBackend(provider string, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return NewClient(opts...)
	case "openai_compatible":
		if cfg.BaseURL == "" {
			return nil, ErrMissingBaseURL
		}
		return NewClient(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// Generate produces a reply for the given instructions and user text.
// The call is bounded by the client timeout; a timeout surfaces as an
// ordinary error for the caller to downgrade to its fallback message.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Instructions),
			openai.UserMessage(req.UserText),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}
