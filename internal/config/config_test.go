package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  embeddings_root: "./embeddings"
  index_root: "./index"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.EmbeddingsRoot != filepath.Join(dir, "embeddings") {
		t.Errorf("embeddings_root not expanded relative to config dir: %s", cfg.Storage.EmbeddingsRoot)
	}
	if cfg.Storage.MetadataDBPath == "" {
		t.Error("metadata_db_path should get a default")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.Encoder.Dimensions != 384 {
		t.Errorf("default dimensions = %d", cfg.Encoder.Dimensions)
	}
	if cfg.Search.DefaultTopK != 10 || cfg.Search.MaxPageSize != 100 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.CollaboratorTimeout().Milliseconds() != 5000 {
		t.Errorf("collaborator timeout = %v", cfg.Search.CollaboratorTimeout())
	}
}
