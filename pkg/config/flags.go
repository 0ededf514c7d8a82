package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --memory-dir
// on "membench run", "membench index", "membench retrieve", and "membench query").
type Flag struct {
	// Name is the long flag name (e.g. "memory-dir").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "memory.dir").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagWorkers          = "workers"
	FlagConsolidateEvery = "consolidate-every"
	FlagTopN             = "top-n"
	FlagContextK         = "context-k"
	FlagCutoffs          = "cutoffs"
	FlagTimeout          = "timeout"
	FlagLimit            = "limit"
	FlagMemoryProvider   = "memory-provider"
	FlagMemoryDir        = "memory-dir"
	FlagVectorProvider   = "vector-provider"
	FlagVectorTarget     = "vector-target"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagLLMProvider      = "llm-provider"
	FlagLLMEndpoint      = "llm-endpoint"
	FlagLLMAPIKey        = "llm-api-key"
	FlagLLMModel         = "llm-model"
	FlagDisableThinking  = "disable-thinking"
	FlagResultsDir       = "results-dir"
	FlagArchiveProvider  = "archive-provider"
	FlagArchiveTarget    = "archive-target"
	FlagEventsProvider   = "events-provider"
	FlagEventsBrokers    = "events-brokers"
	FlagEventsTopic      = "events-topic"
	FlagAPIListen        = "listen"
	FlagLogDir           = "log-dir"
)

// Flags is the shared registry used by all membench commands.
var Flags = FlagSet{
	FlagWorkers: {
		Name: "workers", Shorthand: "w", ViperKey: "benchmark.workers",
		Description: "Number of parallel conversation workers",
	},
	FlagConsolidateEvery: {
		Name: "consolidate-every", ViperKey: "benchmark.consolidate_every",
		Description: "Run memory consolidation after this many inserted units (0 disables)",
	},
	FlagTopN: {
		Name: "top-n", ViperKey: "benchmark.top_n",
		Description: "Number of results requested per retrieval query",
	},
	FlagContextK: {
		Name: "context-k", ViperKey: "benchmark.context_k",
		Description: "Number of retrieved chunks used as answer generation context",
	},
	FlagCutoffs: {
		Name: "cutoffs", ViperKey: "benchmark.cutoffs",
		Description: "Comma-separated ranking cutoffs, e.g. \"3,5,10\"",
	},
	FlagTimeout: {
		Name: "timeout", ViperKey: "benchmark.timeout_seconds",
		Description: "Run-level timeout in seconds (0 means none)",
	},
	FlagLimit: {
		Name: "limit", ViperKey: "benchmark.limit",
		Description: "Process at most this many conversations (0 means all)",
	},
	FlagMemoryProvider: {
		Name: "memory-provider", ViperKey: "memory.provider",
		Description: "Memory backend provider",
	},
	FlagMemoryDir: {
		Name: "memory-dir", Shorthand: "m", ViperKey: "memory.dir",
		Description: "Directory holding per-conversation memory indexes",
	},
	FlagVectorProvider: {
		Name: "vector-provider", ViperKey: "vector_store.provider",
		Description: "Vector store provider (chroma, sqlitevec, qdrant)",
	},
	FlagVectorTarget: {
		Name: "vector-target", ViperKey: "vector_store.target",
		Description: "Vector store target URL or address",
	},
	FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding endpoint URL",
	},
	FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	FlagLLMProvider: {
		Name: "llm-provider", ViperKey: "llm.provider",
		Description: "LLM provider for note and answer generation (openai, ollama; empty disables)",
	},
	FlagLLMEndpoint: {
		Name: "llm-endpoint", ViperKey: "llm.endpoint",
		Description: "LLM endpoint URL",
	},
	FlagLLMAPIKey: {
		Name: "llm-api-key", ViperKey: "llm.api_key",
		Description: "LLM endpoint API key",
	},
	FlagLLMModel: {
		Name: "llm-model", ViperKey: "llm.model",
		Description: "LLM model name",
	},
	FlagDisableThinking: {
		Name: "disable-thinking", ViperKey: "llm.disable_thinking",
		Description: "Suppress model thinking traces during generation",
	},
	FlagResultsDir: {
		Name: "results-dir", ViperKey: "results.dir",
		Description: "Directory receiving result artifacts",
	},
	FlagArchiveProvider: {
		Name: "archive-provider", ViperKey: "archive.provider",
		Description: "Run archive backend (sqlite, postgres, inmemory, none)",
	},
	FlagArchiveTarget: {
		Name: "archive-target", ViperKey: "archive.target",
		Description: "Run archive DSN or file path",
	},
	FlagEventsProvider: {
		Name: "events-provider", ViperKey: "events.provider",
		Description: "Lifecycle event publisher (nop, kafka)",
	},
	FlagEventsBrokers: {
		Name: "events-brokers", ViperKey: "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	FlagEventsTopic: {
		Name: "events-topic", ViperKey: "events.topic",
		Description: "Kafka topic for lifecycle events",
	},
	FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the results API server to listen on",
	},
	FlagLogDir: {
		Name: "log-dir", ViperKey: "log.dir",
		Description: "Directory receiving per-run log files",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
