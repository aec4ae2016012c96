// Package genai wraps the OpenAI chat completion API for assistant replies.
//
// The flow engine decides WHEN a completion is needed; this package only
// knows how to produce one. All calls are bounded by a per-request timeout
// so a slow upstream never wedges a chat turn.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 20 * time.Second

// DefaultHistoryLimit caps how many prior transcript entries are sent with
// a completion request.
const DefaultHistoryLimit = 10

// ClientInterface defines the operations used by the API layer. It exists
// so handlers can be tested with a stub instead of a live API key.
type ClientInterface interface {
	// Complete generates an assistant reply for the given system prompt,
	// latest user message, and prior transcript (oldest first).
	Complete(ctx context.Context, systemPrompt, userPrompt string, history []models.ChatMessage) (string, error)
}

// Opts holds configuration for the completion client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the completion client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client is a thin wrapper around the OpenAI chat completion client.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a completion client. The API key is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("genai.NewClient invoked", "model", cfg.Model, "APIKey_set", cfg.APIKey != "")

	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete generates an assistant reply. History is converted to chat
// messages oldest-first, capped at DefaultHistoryLimit entries.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, history []models.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	if len(history) > DefaultHistoryLimit {
		history = history[len(history)-DefaultHistoryLimit:]
	}
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Message))
		default:
			messages = append(messages, openai.UserMessage(msg.Message))
		}
	}
	if userPrompt != "" {
		messages = append(messages, openai.UserMessage(userPrompt))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("genai.Complete: completion request failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.Complete: completion returned no choices", "model", c.model)
		return "", fmt.Errorf("chat completion returned no choices")
	}

	slog.Debug("genai.Complete succeeded",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}
