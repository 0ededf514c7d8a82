package config

const (
	defaultWorkers          = 2
	defaultConsolidateEvery = 100
	defaultTopN             = 100
	defaultContextK         = 5
	defaultCutoffs          = "3,5,10"

	defaultMemoryProvider = "amem"
	defaultMemoryDir      = "./membench_memory"

	defaultVectorProvider = "sqlitevec"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultResultsDir = "./membench_results"

	defaultArchiveProvider = "sqlite"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "membench.runs"

	defaultAPIListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Benchmark: BenchmarkConfig{
			Workers:          defaultWorkers,
			ConsolidateEvery: defaultConsolidateEvery,
			TopN:             defaultTopN,
			ContextK:         defaultContextK,
			Cutoffs:          defaultCutoffs,
		},
		Memory: MemoryConfig{
			Provider: defaultMemoryProvider,
			Dir:      defaultMemoryDir,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Results: ResultsConfig{
			Dir: defaultResultsDir,
		},
		Archive: ArchiveConfig{
			Provider: defaultArchiveProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
