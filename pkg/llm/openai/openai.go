// Package openai implements pkg/llm's Provider for OpenAI-compatible chat
// completion APIs, including vLLM and other self-hosted servers.
package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/papercomputeco/membench/pkg/llm"
)

// DefaultModel is the default chat model.
const DefaultModel = "gpt-4o-mini"

// Provider wraps an OpenAI-compatible chat completions API.
type Provider struct {
	client          openai.Client
	model           string
	disableThinking bool
}

// ProviderConfig holds configuration for the OpenAI provider.
type ProviderConfig struct {
	// BaseURL overrides the API endpoint, enabling vLLM and other
	// OpenAI-compatible servers. Empty uses the platform default.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the chat model to use. Defaults to DefaultModel if empty.
	Model string

	// DisableThinking passes chat_template_kwargs asking reasoning models
	// to skip their thinking phase. Understood by vLLM-style servers;
	// ignored elsewhere.
	DisableThinking bool
}

// NewProvider creates a chat provider backed by an OpenAI-compatible API.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an API key")
	}

	opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client:          openai.NewClient(opts...),
		model:           model,
		disableThinking: cfg.DisableThinking,
	}, nil
}

// Chat sends a chat completion request and returns the assistant's reply.
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var reqOpts []openaiopt.RequestOption
	if p.disableThinking {
		reqOpts = append(reqOpts, openaiopt.WithJSONSet("chat_template_kwargs", map[string]any{
			"enable_thinking": false,
		}))
	}
	for key, value := range req.Extra {
		reqOpts = append(reqOpts, openaiopt.WithJSONSet(key, value))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrChat, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", llm.ErrChat)
	}

	choice := completion.Choices[0]
	resp := &llm.ChatResponse{
		Model:     completion.Model,
		CreatedAt: time.Unix(completion.Created, 0),
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: choice.Message.Content,
		},
		StopReason: choice.FinishReason,
	}
	if completion.Usage.PromptTokens > 0 || completion.Usage.CompletionTokens > 0 {
		resp.Usage = &llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		}
	}

	return resp, nil
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// convertMessages converts internal messages to OpenAI's param union format.
func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

var _ llm.Provider = (*Provider)(nil)
