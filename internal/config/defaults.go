package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.EmbeddingsRoot == "" {
		cfg.Storage.EmbeddingsRoot = "/usr/local/var/matsearch/data/embeddings"
	}
	if cfg.Storage.IndexRoot == "" {
		cfg.Storage.IndexRoot = "/usr/local/var/matsearch/data/index"
	}
	if cfg.Storage.MetadataDBPath == "" {
		cfg.Storage.MetadataDBPath = "/usr/local/var/matsearch/data/db/documents.db"
	}
	if cfg.Encoder.ModelPath == "" {
		cfg.Encoder.ModelPath = "/usr/local/var/matsearch/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Encoder.Dimensions == 0 {
		cfg.Encoder.Dimensions = 384
	}
	if cfg.Encoder.MaxTokens == 0 {
		cfg.Encoder.MaxTokens = 256
	}
	if cfg.Encoder.CacheSize == 0 {
		cfg.Encoder.CacheSize = 10000
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 10
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 1000
	}
	if cfg.Search.DefaultPageSize == 0 {
		cfg.Search.DefaultPageSize = 10
	}
	if cfg.Search.MaxPageSize == 0 {
		cfg.Search.MaxPageSize = 100
	}
	if cfg.Search.CollaboratorTimeoutMS == 0 {
		cfg.Search.CollaboratorTimeoutMS = 5000
	}
	if cfg.Search.ValidateSample == 0 {
		cfg.Search.ValidateSample = 16
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
