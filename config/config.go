package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"codectx/internal/domain"
)

// Config holds all configuration for the context retriever.
type Config struct {
	Extractors  ExtractorsConfig  `yaml:"extractors"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Registry    RegistryConfig    `yaml:"registry"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ExtractorsConfig bounds what the chunk extractors will read.
type ExtractorsConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"` // bytes; larger files are skipped
}

// EmbedderConfig selects and tunes the embedding backend.
type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // "openai", "ollama", "jina", "mock"
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"` // environment variable holding the API key
	CacheDir   string `yaml:"cache_dir"`
	UseCache   bool   `yaml:"use_cache"`
	BatchSize  int    `yaml:"batch_size"`
	MaxWorkers int    `yaml:"max_workers"`
	Dimension  int    `yaml:"dimension"` // 0 uses the model's default
	MaxRetries int    `yaml:"max_retries"`
}

// VectorIndexConfig locates and parameterizes the vector index.
type VectorIndexConfig struct {
	IndexDir string `yaml:"index_dir"`
	Metric   string `yaml:"metric"` // "cosine" or "l2"
}

// RetrieverConfig holds query-time defaults.
type RetrieverConfig struct {
	TopK           int     `yaml:"top_k"`
	Threshold      float64 `yaml:"threshold"` // 0 disables score filtering
	FormatTemplate string  `yaml:"format_template"`
	Separator      string  `yaml:"separator"`
}

// IndexingConfig tunes the indexing pipeline.
type IndexingConfig struct {
	MaxWorkers   int      `yaml:"max_workers"`
	ExcludeDirs  []string `yaml:"exclude_dirs"`
	ExcludeFiles []string `yaml:"exclude_files"`
}

// RegistryConfig locates the project registry state.
type RegistryConfig struct {
	Dir string `yaml:"dir"`
}

// APIConfig holds REST server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const defaultFormatTemplate = "File: {file} | Type: {type} | Name: {name}\n" +
	"Score: {score}\n" +
	"{separator}\n" +
	"{full_text}\n" +
	"{separator}\n"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".codectx")

	return &Config{
		Extractors: ExtractorsConfig{
			MaxFileSize: 1024 * 1024,
		},
		Embedder: EmbedderConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			APIKeyEnv:  "OPENAI_API_KEY",
			CacheDir:   filepath.Join(dataDir, "cache"),
			UseCache:   true,
			BatchSize:  32,
			MaxWorkers: 4,
			Dimension:  0,
			MaxRetries: 3,
		},
		VectorIndex: VectorIndexConfig{
			IndexDir: filepath.Join(dataDir, "indexes"),
			Metric:   "cosine",
		},
		Retriever: RetrieverConfig{
			TopK:           75,
			Threshold:      0.35,
			FormatTemplate: defaultFormatTemplate,
			Separator:      "--------------------------------------------------------------------------------",
		},
		Indexing: IndexingConfig{
			MaxWorkers:   4,
			ExcludeDirs:  []string{".git", "node_modules", "vendor", "__pycache__", "dist", "build", ".cache", ".codectx"},
			ExcludeFiles: []string{"*.min.js", "*.lock", "*.sum"},
		},
		Registry: RegistryConfig{
			Dir: dataDir,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, layered over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for codectx.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "codectx.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".codectx", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects invalid settings before any work begins.
func (c *Config) Validate() error {
	if c.VectorIndex.Metric != "cosine" && c.VectorIndex.Metric != "l2" {
		return fmt.Errorf("%w: vector_index.metric must be \"cosine\" or \"l2\", got %q",
			domain.ErrInvalidConfig, c.VectorIndex.Metric)
	}
	if c.Retriever.TopK <= 0 {
		return fmt.Errorf("%w: retriever.top_k must be positive, got %d",
			domain.ErrInvalidConfig, c.Retriever.TopK)
	}
	if c.Retriever.Threshold < 0 || c.Retriever.Threshold > 1 {
		return fmt.Errorf("%w: retriever.threshold must be in [0, 1], got %g",
			domain.ErrInvalidConfig, c.Retriever.Threshold)
	}
	if c.Embedder.BatchSize <= 0 {
		return fmt.Errorf("%w: embedder.batch_size must be positive, got %d",
			domain.ErrInvalidConfig, c.Embedder.BatchSize)
	}
	if c.Extractors.MaxFileSize <= 0 {
		return fmt.Errorf("%w: extractors.max_file_size must be positive, got %d",
			domain.ErrInvalidConfig, c.Extractors.MaxFileSize)
	}
	if c.Indexing.MaxWorkers < 0 || c.Embedder.MaxWorkers < 0 {
		return fmt.Errorf("%w: max_workers must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// IndexPath returns the bolt database path for a named index.
func (c *Config) IndexPath(indexName string) string {
	return filepath.Join(c.VectorIndex.IndexDir, indexName+".db")
}

// CachePath returns the embedding cache path for a named index.
func (c *Config) CachePath(indexName string) string {
	return filepath.Join(c.Embedder.CacheDir, indexName+".db")
}

// LockPath returns the advisory lock file path for a named index.
func (c *Config) LockPath(indexName string) string {
	return filepath.Join(c.VectorIndex.IndexDir, indexName+".lock")
}
