package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

// mockChat implements chatService for tests.
type mockChat struct {
	lastParams openai.ChatCompletionNewParams
	response   openai.ChatCompletion
	err        error
}

func (m *mockChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	if m.err != nil {
		return openai.ChatCompletion{}, m.err
	}
	return m.response, nil
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateReturnsContent(t *testing.T) {
	mock := &mockChat{response: completionWith("We open at 9am.")}
	client := &Client{chat: mock, timeout: DefaultTimeout}

	got, err := client.Generate(context.Background(), Request{
		Instructions: "You are a shop assistant.",
		UserText:     "when do you open?",
		Model:        "gpt-4o",
		Temperature:  0.7,
		MaxTokens:    500,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "We open at 9am." {
		t.Errorf("unexpected reply: %q", got)
	}
	if string(mock.lastParams.Model) != "gpt-4o" {
		t.Errorf("expected model to pass through, got %q", mock.lastParams.Model)
	}
	if len(mock.lastParams.Messages) != 2 {
		t.Errorf("expected system + user message, got %d", len(mock.lastParams.Messages))
	}
}

func TestGenerateDefaultsModel(t *testing.T) {
	mock := &mockChat{response: completionWith("ok")}
	client := &Client{chat: mock, timeout: DefaultTimeout}

	if _, err := client.Generate(context.Background(), Request{Instructions: "i", UserText: "u"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if string(mock.lastParams.Model) != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, mock.lastParams.Model)
	}
}

func TestGeneratePropagatesError(t *testing.T) {
	apiErr := errors.New("upstream unavailable")
	client := &Client{chat: &mockChat{err: apiErr}, timeout: DefaultTimeout}

	_, err := client.Generate(context.Background(), Request{Instructions: "i", UserText: "u"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, apiErr) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	client := &Client{chat: &mockChat{response: openai.ChatCompletion{}}, timeout: DefaultTimeout}

	_, err := client.Generate(context.Background(), Request{Instructions: "i", UserText: "u"})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerateOmitsUnsetSamplingParams(t *testing.T) {
	mock := &mockChat{response: completionWith("ok")}
	client := &Client{chat: mock, timeout: DefaultTimeout}

	if _, err := client.Generate(context.Background(), Request{Instructions: "i", UserText: "u"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if mock.lastParams.Temperature.Valid() || mock.lastParams.MaxTokens.Valid() || mock.lastParams.TopP.Valid() {
		t.Error("zero-valued sampling params must be omitted from the request")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClientTimeoutDefault(t *testing.T) {
	client, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", client.timeout)
	}

	client, err = NewClient(WithAPIKey("test-key"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.timeout != 5*time.Second {
		t.Errorf("expected configured timeout, got %v", client.timeout)
	}
}

func TestNewBackendProviderSelection(t *testing.T) {
	if _, err := NewBackend("openai", WithAPIKey("k")); err != nil {
		t.Errorf("openai provider should build: %v", err)
	}
	if _, err := NewBackend("", WithAPIKey("k")); err != nil {
		t.Errorf("blank provider should default to openai: %v", err)
	}
	if _, err := NewBackend("openai_compatible", WithAPIKey("k")); !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("openai_compatible without base URL must fail, got %v", err)
	}
	if _, err := NewBackend("openai_compatible", WithAPIKey("k"), WithBaseURL("http://localhost:11434/v1")); err != nil {
		t.Errorf("openai_compatible with base URL should build: %v", err)
	}
	if _, err := NewBackend("mystery"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
