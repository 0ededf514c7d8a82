package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/membench/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// ErrInvalid marks configuration errors that are fatal to a run. Commands
// check for it with errors.Is and exit non-zero before any work starts.
var ErrInvalid = errors.New("invalid configuration")

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .membench/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"benchmark.workers",
		"benchmark.consolidate_every",
		"benchmark.top_n",
		"benchmark.context_k",
		"benchmark.cutoffs",
		"benchmark.timeout_seconds",
		"benchmark.limit",
		"memory.provider",
		"memory.dir",
		"vector_store.provider",
		"vector_store.target",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"embedding.api_key",
		"llm.provider",
		"llm.endpoint",
		"llm.api_key",
		"llm.model",
		"llm.disable_thinking",
		"results.dir",
		"archive.provider",
		"archive.target",
		"events.provider",
		"events.brokers",
		"events.topic",
		"api.listen",
		"log.dir",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretKey returns true for keys holding credentials. Secret values are
// masked in listings and prompted with hidden input.
func IsSecretKey(key string) bool {
	info, ok := configKeys[key]
	return ok && info.secret
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .membench/
// directory. If the file does not exist, returns NewDefaultConfig() so callers
// always receive a fully-populated Config with sane defaults. Fields explicitly
// set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Benchmark.Workers == 0 {
		cfg.Benchmark.Workers = defaults.Benchmark.Workers
	}
	if cfg.Benchmark.ConsolidateEvery == 0 {
		cfg.Benchmark.ConsolidateEvery = defaults.Benchmark.ConsolidateEvery
	}
	if cfg.Benchmark.TopN == 0 {
		cfg.Benchmark.TopN = defaults.Benchmark.TopN
	}
	if cfg.Benchmark.ContextK == 0 {
		cfg.Benchmark.ContextK = defaults.Benchmark.ContextK
	}
	if cfg.Benchmark.Cutoffs == "" {
		cfg.Benchmark.Cutoffs = defaults.Benchmark.Cutoffs
	}

	if cfg.Memory.Provider == "" {
		cfg.Memory.Provider = defaults.Memory.Provider
	}
	if cfg.Memory.Dir == "" {
		cfg.Memory.Dir = defaults.Memory.Dir
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = defaults.VectorStore.Provider
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = defaults.Embedding.Provider
	}
	if cfg.Embedding.Target == "" {
		cfg.Embedding.Target = defaults.Embedding.Target
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaults.Embedding.Dimensions
	}

	if cfg.Results.Dir == "" {
		cfg.Results.Dir = defaults.Results.Dir
	}

	if cfg.Archive.Provider == "" {
		cfg.Archive.Provider = defaults.Archive.Provider
	}

	if cfg.Events.Provider == "" {
		cfg.Events.Provider = defaults.Events.Provider
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
}

// SaveConfig persists the configuration to config.toml in the target .membench/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseCutoffs parses a comma-separated cutoff list like "3,5,10" into a
// sorted slice of unique positive ints.
func ParseCutoffs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: cutoffs must not be empty", ErrInvalid)
	}

	seen := make(map[int]bool)
	var ks []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: cutoff %q is not an integer", ErrInvalid, part)
		}
		if k <= 0 {
			return nil, fmt.Errorf("%w: cutoff %d must be positive", ErrInvalid, k)
		}
		if !seen[k] {
			seen[k] = true
			ks = append(ks, k)
		}
	}

	if len(ks) == 0 {
		return nil, fmt.Errorf("%w: cutoffs must contain at least one value", ErrInvalid)
	}

	sort.Ints(ks)
	return ks, nil
}

// Validate checks the tunables every pipeline stage depends on. It returns
// an error wrapping ErrInvalid so commands can exit non-zero before any
// work starts.
func (c *Config) Validate() error {
	if c.Benchmark.Workers == 0 {
		return fmt.Errorf("%w: workers must be greater than zero", ErrInvalid)
	}
	if c.Benchmark.TopN == 0 {
		return fmt.Errorf("%w: top_n must be greater than zero", ErrInvalid)
	}
	if _, err := ParseCutoffs(c.Benchmark.Cutoffs); err != nil {
		return err
	}
	if c.Memory.Dir == "" {
		return fmt.Errorf("%w: memory dir must not be empty", ErrInvalid)
	}
	if c.Results.Dir == "" {
		return fmt.Errorf("%w: results dir must not be empty", ErrInvalid)
	}
	return nil
}

// Redacted returns a copy of the config with credential fields masked,
// safe to embed in manifests and archived run records.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Embedding.APIKey != "" {
		out.Embedding.APIKey = "***"
	}
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "***"
	}
	return &out
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
