// Package memoryutils is the memory utility package
package memoryutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/embeddings"
	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/memory"
	"github.com/papercomputeco/membench/pkg/memory/amem"
)

type NewAdapterOpts struct {
	ProviderType   string
	IndexDir       string
	VectorProvider string
	VectorTarget   string
	Dimensions     uint

	// Embedder is required; Notes is the optional note-generation
	// provider.
	Embedder embeddings.Embedder
	Notes    llm.Provider

	Logger *zap.Logger
}

func NewAdapter(o *NewAdapterOpts) (memory.Adapter, error) {
	switch o.ProviderType {
	case "amem":
		return amem.NewAdapter(amem.Config{
			IndexDir:       o.IndexDir,
			VectorProvider: o.VectorProvider,
			VectorTarget:   o.VectorTarget,
			Dimensions:     o.Dimensions,
		}, o.Embedder, o.Notes, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported memory provider: %s", o.ProviderType)
	}
}
