// Package config provides configuration loading and structs for the retrieval server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Encoder EncoderConfig `yaml:"encoder"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for embedding partitions, index artifacts, and metadata.
type StorageConfig struct {
	EmbeddingsRoot string `yaml:"embeddings_root"`
	IndexRoot      string `yaml:"index_root"`
	MetadataDBPath string `yaml:"metadata_db_path"`
}

// EncoderConfig holds query encoder settings for the text modality.
type EncoderConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds query defaults and limits.
type SearchConfig struct {
	DefaultTopK           int `yaml:"default_top_k"`
	MaxTopK               int `yaml:"max_top_k"`
	DefaultPageSize       int `yaml:"default_page_size"`
	MaxPageSize           int `yaml:"max_page_size"`
	CollaboratorTimeoutMS int `yaml:"collaborator_timeout_ms"`
	ValidateSample        int `yaml:"validate_sample"`
}

// CollaboratorTimeout returns the timeout applied to encoder and
// metadata-store calls during a query.
func (s *SearchConfig) CollaboratorTimeout() time.Duration {
	return time.Duration(s.CollaboratorTimeoutMS) * time.Millisecond
}

// WatchConfig holds embedding-manifest watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.EmbeddingsRoot = expandPath(cfg.Storage.EmbeddingsRoot, configDir)
	cfg.Storage.IndexRoot = expandPath(cfg.Storage.IndexRoot, configDir)
	cfg.Storage.MetadataDBPath = expandPath(cfg.Storage.MetadataDBPath, configDir)
	cfg.Encoder.ModelPath = expandPath(cfg.Encoder.ModelPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
