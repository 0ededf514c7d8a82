package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent membench configuration stored as config.toml
// in the .membench/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Benchmark   BenchmarkConfig   `toml:"benchmark"`
	Memory      MemoryConfig      `toml:"memory"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Results     ResultsConfig     `toml:"results"`
	Archive     ArchiveConfig     `toml:"archive"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
	Log         LogConfig         `toml:"log"`
}

// BenchmarkConfig holds the run tunables shared by the pipeline stages.
type BenchmarkConfig struct {
	// Workers is the bounded parallelism of the index and retrieval stages.
	Workers uint `toml:"workers,omitempty"`

	// ConsolidateEvery triggers the memory consolidation hook after this many
	// inserted units. Zero disables consolidation.
	ConsolidateEvery uint `toml:"consolidate_every,omitempty"`

	// TopN is the number of results requested per retrieval query.
	TopN uint `toml:"top_n,omitempty"`

	// ContextK is the number of retrieved chunks formatted into the answer
	// generation context.
	ContextK uint `toml:"context_k,omitempty"`

	// Cutoffs is the comma-separated list of ranking cutoffs, e.g. "3,5,10".
	Cutoffs string `toml:"cutoffs,omitempty"`

	// TimeoutSeconds bounds a whole run. Zero means no timeout.
	TimeoutSeconds uint `toml:"timeout_seconds,omitempty"`

	// Limit caps the number of conversations loaded from the dataset.
	// Zero means no cap.
	Limit uint `toml:"limit,omitempty"`
}

// MemoryConfig holds memory backend settings.
type MemoryConfig struct {
	Provider string `toml:"provider,omitempty"`
	Dir      string `toml:"dir,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// LLMConfig holds settings for the note generation and answer generation
// model. An empty provider disables both stages.
type LLMConfig struct {
	Provider        string `toml:"provider,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	APIKey          string `toml:"api_key,omitempty"`
	Model           string `toml:"model,omitempty"`
	DisableThinking bool   `toml:"disable_thinking,omitempty"`
}

// ResultsConfig holds result artifact settings.
type ResultsConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// ArchiveConfig holds run archive settings. Target is a DSN for postgres or
// a file path override for sqlite.
type ArchiveConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EventsConfig holds lifecycle event publisher settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// APIConfig holds results API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret marks keys whose values should be prompted with hidden input
	// and masked when listed.
	secret bool
}

func uintKey(get func(c *Config) uint, set func(c *Config, v uint), name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"benchmark.workers": uintKey(
		func(c *Config) uint { return c.Benchmark.Workers },
		func(c *Config, v uint) { c.Benchmark.Workers = v },
		"benchmark.workers",
	),
	"benchmark.consolidate_every": uintKey(
		func(c *Config) uint { return c.Benchmark.ConsolidateEvery },
		func(c *Config, v uint) { c.Benchmark.ConsolidateEvery = v },
		"benchmark.consolidate_every",
	),
	"benchmark.top_n": uintKey(
		func(c *Config) uint { return c.Benchmark.TopN },
		func(c *Config, v uint) { c.Benchmark.TopN = v },
		"benchmark.top_n",
	),
	"benchmark.context_k": uintKey(
		func(c *Config) uint { return c.Benchmark.ContextK },
		func(c *Config, v uint) { c.Benchmark.ContextK = v },
		"benchmark.context_k",
	),
	"benchmark.cutoffs": {
		get: func(c *Config) string { return c.Benchmark.Cutoffs },
		set: func(c *Config, v string) error {
			if _, err := ParseCutoffs(v); err != nil {
				return err
			}
			c.Benchmark.Cutoffs = v
			return nil
		},
	},
	"benchmark.timeout_seconds": uintKey(
		func(c *Config) uint { return c.Benchmark.TimeoutSeconds },
		func(c *Config, v uint) { c.Benchmark.TimeoutSeconds = v },
		"benchmark.timeout_seconds",
	),
	"benchmark.limit": uintKey(
		func(c *Config) uint { return c.Benchmark.Limit },
		func(c *Config, v uint) { c.Benchmark.Limit = v },
		"benchmark.limit",
	),
	"memory.provider": {
		get: func(c *Config) string { return c.Memory.Provider },
		set: func(c *Config, v string) error { c.Memory.Provider = v; return nil },
	},
	"memory.dir": {
		get: func(c *Config) string { return c.Memory.Dir },
		set: func(c *Config, v string) error { c.Memory.Dir = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": uintKey(
		func(c *Config) uint { return c.Embedding.Dimensions },
		func(c *Config, v uint) { c.Embedding.Dimensions = v },
		"embedding.dimensions",
	),
	"embedding.api_key": {
		get:    func(c *Config) string { return c.Embedding.APIKey },
		set:    func(c *Config, v string) error { c.Embedding.APIKey = v; return nil },
		secret: true,
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.endpoint": {
		get: func(c *Config) string { return c.LLM.Endpoint },
		set: func(c *Config, v string) error { c.LLM.Endpoint = v; return nil },
	},
	"llm.api_key": {
		get:    func(c *Config) string { return c.LLM.APIKey },
		set:    func(c *Config, v string) error { c.LLM.APIKey = v; return nil },
		secret: true,
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.disable_thinking": {
		get: func(c *Config) string { return strconv.FormatBool(c.LLM.DisableThinking) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for llm.disable_thinking: %w", err)
			}
			c.LLM.DisableThinking = b
			return nil
		},
	},
	"results.dir": {
		get: func(c *Config) string { return c.Results.Dir },
		set: func(c *Config, v string) error { c.Results.Dir = v; return nil },
	},
	"archive.provider": {
		get: func(c *Config) string { return c.Archive.Provider },
		set: func(c *Config, v string) error { c.Archive.Provider = v; return nil },
	},
	"archive.target": {
		get: func(c *Config) string { return c.Archive.Target },
		set: func(c *Config, v string) error { c.Archive.Target = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"log.dir": {
		get: func(c *Config) string { return c.Log.Dir },
		set: func(c *Config, v string) error { c.Log.Dir = v; return nil },
	},
}
