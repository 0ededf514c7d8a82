// Package stack builds the shared provider stack (config, embedder, llm,
// memory adapter, event publisher, archive) for membench commands, so
// every command constructs providers the same way.
package stack

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/archive"
	archiveutils "github.com/papercomputeco/membench/pkg/archive/utils"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/membench/pkg/embeddings/utils"
	"github.com/papercomputeco/membench/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/membench/pkg/eventstream/utils"
	"github.com/papercomputeco/membench/pkg/llm"
	llmutils "github.com/papercomputeco/membench/pkg/llm/utils"
	"github.com/papercomputeco/membench/pkg/memory"
	memoryutils "github.com/papercomputeco/membench/pkg/memory/utils"
)

// LoadConfig resolves the effective configuration for a command: it reads
// the persistent config-dir flag, initializes viper against that directory,
// binds the command's registered flags, and materializes a Config honoring
// the flag > env > file > default precedence chain.
func LoadConfig(cmd *cobra.Command, registryKeys []string) (*config.Config, error) {
	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, fmt.Errorf("could not get config-dir flag: %v", err)
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)

	return config.ConfigFromViper(v), nil
}

// NewEmbedder builds the embedding provider from config.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return embedder, nil
}

// NewLLMProvider builds the note and answer generation provider from
// config. An empty provider name disables generation; callers get nil.
func NewLLMProvider(cfg *config.Config) (llm.Provider, error) {
	if cfg.LLM.Provider == "" {
		return nil, nil
	}

	provider, err := llmutils.NewProvider(&llmutils.NewProviderOpts{
		ProviderType:    cfg.LLM.Provider,
		Endpoint:        cfg.LLM.Endpoint,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		DisableThinking: cfg.LLM.DisableThinking,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}

	return provider, nil
}

// NewAdapter builds the memory adapter from config. Notes may be nil when
// no llm provider is configured.
func NewAdapter(cfg *config.Config, embedder embeddings.Embedder, notes llm.Provider, logger *zap.Logger) (memory.Adapter, error) {
	adapter, err := memoryutils.NewAdapter(&memoryutils.NewAdapterOpts{
		ProviderType:   cfg.Memory.Provider,
		IndexDir:       cfg.Memory.Dir,
		VectorProvider: cfg.VectorStore.Provider,
		VectorTarget:   cfg.VectorStore.Target,
		Dimensions:     cfg.Embedding.Dimensions,
		Embedder:       embedder,
		Notes:          notes,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory adapter: %w", err)
	}

	return adapter, nil
}

// NewPublisher builds the lifecycle event publisher from config.
func NewPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	pub, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		Provider: cfg.Events.Provider,
		Brokers:  cfg.Events.Brokers,
		Topic:    cfg.Events.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	return pub, nil
}

// NewArchive builds the run archive driver from config. The "none"
// provider disables archiving; callers get nil.
func NewArchive(ctx context.Context, cfg *config.Config) (archive.Driver, error) {
	if cfg.Archive.Provider == "" || cfg.Archive.Provider == "none" {
		return nil, nil
	}

	driver, err := archiveutils.NewDriver(ctx, &archiveutils.NewDriverOpts{
		Provider:   cfg.Archive.Provider,
		DSN:        cfg.Archive.Target,
		ResultsDir: cfg.Results.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("creating archive driver: %w", err)
	}

	return driver, nil
}

// Publish emits a lifecycle event best-effort. Publish failures are
// logged and never fail the caller.
func Publish(ctx context.Context, pub eventstream.Publisher, logger *zap.Logger, event *eventstream.RunEvent) {
	if pub == nil || event == nil {
		return
	}

	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("publishing run event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}
