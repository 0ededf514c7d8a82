// Package llmutils is the llm utility package
package llmutils

import (
	"fmt"

	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/llm/ollama"
	"github.com/papercomputeco/membench/pkg/llm/openai"
)

type NewProviderOpts struct {
	ProviderType    string
	Endpoint        string
	APIKey          string
	Model           string
	DisableThinking bool
}

func NewProvider(o *NewProviderOpts) (llm.Provider, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewProvider(ollama.ProviderConfig{
			BaseURL: o.Endpoint,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewProvider(openai.ProviderConfig{
			BaseURL:         o.Endpoint,
			APIKey:          o.APIKey,
			Model:           o.Model,
			DisableThinking: o.DisableThinking,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
