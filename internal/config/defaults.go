package config

// Default values applied by ApplyDefaults.
const (
	DefaultEmbeddingModel = "all-MiniLM-L6-v2"
	DefaultProvider       = "onnx"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultDimension      = 384
	DefaultIndexType      = "flat"
	DefaultChunkSize      = 500
	DefaultChunkOverlap   = 50
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.AI.Embedding.Provider == "" {
		cfg.AI.Embedding.Provider = DefaultProvider
	}
	if cfg.AI.Embedding.ModelDir == "" {
		cfg.AI.Embedding.ModelDir = "models/onnx"
	}
	if cfg.AI.Embedding.OllamaURL == "" {
		cfg.AI.Embedding.OllamaURL = DefaultOllamaURL
	}
	if cfg.AI.Embedding.MaxTokens == 0 {
		cfg.AI.Embedding.MaxTokens = 256
	}
	if cfg.AI.Embedding.CacheSize == 0 {
		cfg.AI.Embedding.CacheSize = 10000
	}
	if cfg.AI.VectorDB.Dimension == 0 {
		cfg.AI.VectorDB.Dimension = DefaultDimension
	}
	if cfg.AI.VectorDB.IndexType == "" {
		cfg.AI.VectorDB.IndexType = DefaultIndexType
	}
	if cfg.AI.VectorDB.StorageDir == "" {
		cfg.AI.VectorDB.StorageDir = "models"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	// Overlap stays nil when unset so an explicit 0 is distinguishable.
	if cfg.Data.Directory == "" {
		cfg.Data.Directory = "data"
	}
	if cfg.Data.ProfilePath == "" {
		cfg.Data.ProfilePath = "data/profile.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.LogFile == "" {
		cfg.Logging.LogFile = "logs/run.log"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
