package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Environment variable names. Each overrides the matching file field.
const (
	EnvDBPath      = "REPOCTX_DB_PATH"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvLogLevel    = "REPOCTX_LOG_LEVEL"
	EnvWorkers     = "REPOCTX_WORKERS"
)

// Config holds every knob the pipeline reads. It is loaded once at
// startup and threaded into each component at construction; nothing
// reads it through a global.
type Config struct {
	// DBPath is where the SQLite database lives.
	DBPath string `yaml:"db_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	GitHub    GitHubConfig    `yaml:"github"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Patterns  PatternConfig   `yaml:"patterns"`
}

// GitHubConfig configures the remote repository client.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// ChunkingConfig bounds fragment size.
type ChunkingConfig struct {
	MaxChars int `yaml:"max_chars"`
	MaxLines int `yaml:"max_lines"`
	Overlap  int `yaml:"overlap"`
}

// EmbeddingConfig selects and tunes the embedding provider. The API
// key is never read from the file; it comes from the provider's own
// environment variable.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	CacheSize   int    `yaml:"cache_size"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	Workers     int    `yaml:"workers"`
}

// PatternConfig selects which repository files get indexed. Empty
// lists fall back to the built-in defaults.
type PatternConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DBPath:   "repoctx.db",
		LogLevel: "info",
		Chunking: ChunkingConfig{
			MaxChars: 1500,
			MaxLines: 40,
			Overlap:  15,
		},
		Embedding: EmbeddingConfig{
			CacheSize:   10000,
			BatchSize:   100,
			Concurrency: 4,
			Workers:     8,
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path,
// and environment variable overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.DBPath = envOrDefault(EnvDBPath, cfg.DBPath)
	cfg.LogLevel = envOrDefault(EnvLogLevel, cfg.LogLevel)
	cfg.GitHub.Token = envOrDefault(EnvGitHubToken, cfg.GitHub.Token)
	cfg.Embedding.Workers = envOrDefaultInt(EnvWorkers, cfg.Embedding.Workers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Chunking.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be positive")
	}
	if c.Chunking.MaxLines <= 0 {
		return fmt.Errorf("chunking.max_lines must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxLines {
		return fmt.Errorf("chunking.overlap must be in [0, max_lines)")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
