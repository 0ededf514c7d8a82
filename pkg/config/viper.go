package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/membench/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MEMBENCH_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMBENCH_BENCHMARK_WORKERS, MEMBENCH_LLM_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MEMBENCH_BENCHMARK_WORKERS, MEMBENCH_EMBEDDING_TARGET, etc.
	v.SetEnvPrefix("MEMBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Benchmark
	v.SetDefault("benchmark.workers", d.Benchmark.Workers)
	v.SetDefault("benchmark.consolidate_every", d.Benchmark.ConsolidateEvery)
	v.SetDefault("benchmark.top_n", d.Benchmark.TopN)
	v.SetDefault("benchmark.context_k", d.Benchmark.ContextK)
	v.SetDefault("benchmark.cutoffs", d.Benchmark.Cutoffs)
	v.SetDefault("benchmark.timeout_seconds", d.Benchmark.TimeoutSeconds)
	v.SetDefault("benchmark.limit", d.Benchmark.Limit)

	// Memory
	v.SetDefault("memory.provider", d.Memory.Provider)
	v.SetDefault("memory.dir", d.Memory.Dir)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.disable_thinking", d.LLM.DisableThinking)

	// Results
	v.SetDefault("results.dir", d.Results.Dir)

	// Archive
	v.SetDefault("archive.provider", d.Archive.Provider)
	v.SetDefault("archive.target", d.Archive.Target)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Log
	v.SetDefault("log.dir", d.Log.Dir)
}

// ConfigFromViper materializes a Config from the viper precedence chain.
// Commands call this in PreRunE after BindRegisteredFlags so the returned
// Config reflects flags, env, file, and defaults in that order.
func ConfigFromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Benchmark: BenchmarkConfig{
			Workers:          v.GetUint("benchmark.workers"),
			ConsolidateEvery: v.GetUint("benchmark.consolidate_every"),
			TopN:             v.GetUint("benchmark.top_n"),
			ContextK:         v.GetUint("benchmark.context_k"),
			Cutoffs:          v.GetString("benchmark.cutoffs"),
			TimeoutSeconds:   v.GetUint("benchmark.timeout_seconds"),
			Limit:            v.GetUint("benchmark.limit"),
		},
		Memory: MemoryConfig{
			Provider: v.GetString("memory.provider"),
			Dir:      v.GetString("memory.dir"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			APIKey:     v.GetString("embedding.api_key"),
		},
		LLM: LLMConfig{
			Provider:        v.GetString("llm.provider"),
			Endpoint:        v.GetString("llm.endpoint"),
			APIKey:          v.GetString("llm.api_key"),
			Model:           v.GetString("llm.model"),
			DisableThinking: v.GetBool("llm.disable_thinking"),
		},
		Results: ResultsConfig{
			Dir: v.GetString("results.dir"),
		},
		Archive: ArchiveConfig{
			Provider: v.GetString("archive.provider"),
			Target:   v.GetString("archive.target"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Log: LogConfig{
			Dir: v.GetString("log.dir"),
		},
	}
}
