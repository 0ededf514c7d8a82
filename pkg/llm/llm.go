// Package llm defines the chat completion interface used for memory note
// generation and answer synthesis, with provider implementations in
// subpackages.
package llm

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model overrides the provider's configured model when non-empty.
	Model string `json:"model,omitempty"`

	// Messages is the conversation to complete.
	Messages []Message `json:"messages"`

	// Generation parameters, applied when non-nil.
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Extra holds provider-specific request fields that don't map to
	// common parameters (e.g. chat_template_kwargs).
	Extra map[string]any `json:"extra,omitempty"`
}

// ChatResponse is a provider-agnostic chat completion response.
type ChatResponse struct {
	// Model that generated the response.
	Model string `json:"model"`

	// Response timestamp.
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The assistant's reply.
	Message Message `json:"message"`

	// Stop reason (e.g. "stop", "length").
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage and timing, when the provider reports it.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts and timing information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// TotalDurationNs is the server-side generation time where the
	// provider reports it (Ollama does, OpenAI does not).
	TotalDurationNs int64 `json:"total_duration_ns,omitempty"`
}

// Provider is a chat completion client.
type Provider interface {
	// Chat sends a completion request and returns the assistant's reply.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Close releases resources held by the provider.
	Close() error
}
