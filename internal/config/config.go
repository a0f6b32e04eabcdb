// Package config provides configuration loading and structs for the kotae server and CLI.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/hyperjump/kotae/internal/models"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. KOTAE_SERVER_PORT.
const EnvPrefix = "KOTAE_"

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Vector index types.
const (
	IndexMemory = "memory"
	IndexFAISS  = "faiss"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" env:"DEBUG"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Embedding EmbeddingConfig `yaml:"embedding" envPrefix:"EMBEDDING_"`
	Index     IndexConfig     `yaml:"index" envPrefix:"INDEX_"`
	Chunking  ChunkingConfig  `yaml:"chunking" envPrefix:"CHUNKING_"`
	Retrieval RetrievalConfig `yaml:"retrieval" envPrefix:"RETRIEVAL_"`
	Watch     WatchConfig     `yaml:"watch" envPrefix:"WATCH_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
	// MaxBodyBytes caps request bodies; larger requests get 413.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" env:"PROVIDER"`
	ModelPath   string `yaml:"model_path" env:"MODEL_PATH"`
	Model       string `yaml:"model" env:"MODEL"`
	Dimensions  int    `yaml:"dimensions" env:"DIMENSIONS"`
	MaxTokens   int    `yaml:"max_tokens" env:"MAX_TOKENS"`
	CacheSize   int    `yaml:"cache_size" env:"CACHE_SIZE"`
	BatchSize   int    `yaml:"batch_size" env:"BATCH_SIZE"`
	Concurrency int    `yaml:"concurrency" env:"CONCURRENCY"`
	MaxRetries  uint64 `yaml:"max_retries" env:"MAX_RETRIES"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL"`
	// APIKeyEnv names the environment variable holding the provider API key.
	APIKeyEnv string `yaml:"api_key_env" env:"API_KEY_ENV"`
}

// APIKey resolves the provider API key from the environment.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Type string `yaml:"type" env:"TYPE"`
}

// ChunkingConfig holds the sliding window parameters, in words.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// ChunkOverlap is a pointer so an explicit 0 survives ApplyDefaults.
	ChunkOverlap *int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
}

// Overlap returns the configured overlap, 0 when unset.
func (c ChunkingConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	TopK                int      `yaml:"top_k" env:"TOP_K"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" env:"DIRECTORIES"`
	Extensions  []string `yaml:"extensions" env:"EXTENSIONS"`
	Recursive   *bool    `yaml:"recursive" env:"RECURSIVE"`
	DebounceMS  int      `yaml:"debounce_ms" env:"DEBOUNCE_MS"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads the config file at path, applies KOTAE_* environment overrides,
// fills defaults and expands paths. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	ApplyDefaults(&cfg)

	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks the values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrInvalidConfiguration, c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap() < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", models.ErrInvalidConfiguration, c.Chunking.Overlap())
	}
	if c.Chunking.Overlap() >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			models.ErrInvalidConfiguration, c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", models.ErrInvalidConfiguration, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", models.ErrInvalidConfiguration)
	}
	switch c.Index.Type {
	case IndexMemory, IndexFAISS:
	default:
		return fmt.Errorf("%w: unknown index type %q", models.ErrInvalidConfiguration, c.Index.Type)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", models.ErrInvalidConfiguration)
	}
	if t := c.Retrieval.SimilarityThreshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return fmt.Errorf("%w: similarity_threshold must be finite", models.ErrInvalidConfiguration)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
