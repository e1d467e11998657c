// Package config provides YAML-based configuration management for the MD&A service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/automated-mda/backend/internal/theme"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Processing configuration
	Processing ProcessingConfig `yaml:"processing"`

	// Retrieval configuration
	RAG RAGConfig `yaml:"rag"`

	// Narrative generation
	LLM LLMConfig `yaml:"llm"`

	// Client upload flow
	Flow FlowConfig `yaml:"flow"`

	Logging LoggingConfig `yaml:"logging"`

	Theme theme.Theme `yaml:"theme"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
	EnableGzip   bool   `yaml:"enable_gzip"`
}

// StorageConfig contains file and result storage settings
type StorageConfig struct {
	DataDirectory    string        `yaml:"data_directory"`
	UploadsDirectory string        `yaml:"uploads_directory"`
	ResultsBackend   string        `yaml:"results_backend"` // "duckdb" or "memory"
	DuckDBPath       string        `yaml:"duckdb_path"`
	Archive          ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig configures the optional MinIO archive for generated reports
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ProcessingConfig contains job execution settings
type ProcessingConfig struct {
	MaxConcurrentJobs      int `yaml:"max_concurrent_jobs"`
	JobTimeoutSeconds      int `yaml:"job_timeout_seconds"`
	JobRetentionMinutes    int `yaml:"job_retention_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// RAGConfig contains chunking, embedding and retrieval settings
type RAGConfig struct {
	ChunkSize    int             `yaml:"chunk_size"`    // words
	ChunkOverlap int             `yaml:"chunk_overlap"` // words
	TopK         int             `yaml:"top_k"`
	Embedding    EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig selects the embedding backend
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "hash", "openai" or "ollama"
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // hash provider only
}

// LLMConfig selects the narrative backend
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "template", "openai" or "ollama"
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// FlowConfig controls how clients advance the processing stages
type FlowConfig struct {
	Mode           string `yaml:"mode"` // "tracked" or "simulated"
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Pretty         bool   `yaml:"pretty"`
	RequestLogging bool   `yaml:"request_logging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "50M",
			EnableGzip:   true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ResultsBackend:   "duckdb",
			DuckDBPath:       "./data/results.duckdb",
			Archive: ArchiveConfig{
				Enabled: false,
				Region:  "us-east-1",
				Bucket:  "mda-reports",
			},
		},
		Processing: ProcessingConfig{
			MaxConcurrentJobs:      3,
			JobTimeoutSeconds:      300,
			JobRetentionMinutes:    60,
			CleanupIntervalMinutes: 5,
		},
		RAG: RAGConfig{
			ChunkSize:    100,
			ChunkOverlap: 20,
			TopK:         3,
			Embedding: EmbeddingConfig{
				Provider:   "hash",
				Dimensions: 256,
			},
		},
		LLM: LLMConfig{
			Provider:    "template",
			Temperature: 0.2,
		},
		Flow: FlowConfig{
			Mode:           "tracked",
			PollIntervalMs: 500,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Pretty:         true,
			RequestLogging: true,
		},
		Theme: theme.Default(),
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so omitted keys keep sane values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.Theme = config.Theme.WithDefaults()

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Automated MD&A configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the service cannot run with
func (c *AppConfig) Validate() error {
	switch c.Storage.ResultsBackend {
	case "duckdb", "memory":
	default:
		return fmt.Errorf("invalid storage.results_backend %q", c.Storage.ResultsBackend)
	}
	switch c.RAG.Embedding.Provider {
	case "hash", "openai", "ollama":
	default:
		return fmt.Errorf("invalid rag.embedding.provider %q", c.RAG.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "template", "openai", "ollama":
	default:
		return fmt.Errorf("invalid llm.provider %q", c.LLM.Provider)
	}
	switch c.Flow.Mode {
	case "tracked", "simulated":
	default:
		return fmt.Errorf("invalid flow.mode %q", c.Flow.Mode)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Processing.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("processing.max_concurrent_jobs must be positive")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.DuckDBPath = filepath.Join(dataDir, "results.duckdb")
	}

	if key := os.Getenv("MDA_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("MDA_EMBEDDING_API_KEY"); key != "" {
		c.RAG.Embedding.APIKey = key
	}
	if level := os.Getenv("MDA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.DuckDBPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// JobTimeout is the per-job processing deadline
func (c *AppConfig) JobTimeout() time.Duration {
	return time.Duration(c.Processing.JobTimeoutSeconds) * time.Second
}

// JobRetention is how long finished jobs are kept in memory
func (c *AppConfig) JobRetention() time.Duration {
	return time.Duration(c.Processing.JobRetentionMinutes) * time.Minute
}

// CleanupInterval is the period of the background job cleanup
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// PollInterval is how often tracked clients poll job status
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Flow.PollIntervalMs) * time.Millisecond
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Storage.ResultsBackend == "duckdb" && c.Storage.DuckDBPath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.DuckDBPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
