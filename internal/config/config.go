// Package config provides configuration loading and structs for careervec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	AI       AISettings     `yaml:"ai_settings"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`

	// raw keeps every key of the loaded file, including ones the struct does not model.
	raw map[string]any
}

// AISettings groups the embedding model and vector database settings.
type AISettings struct {
	EmbeddingModel string          `yaml:"embedding_model"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
	VectorDB       VectorDBConfig  `yaml:"vector_db"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "ollama" or "hash".
	Provider  string `yaml:"provider"`
	ModelDir  string `yaml:"model_dir"`
	OllamaURL string `yaml:"ollama_url"`
	MaxTokens int    `yaml:"max_tokens"`
	CacheSize int    `yaml:"cache_size"`
}

// VectorDBConfig holds vector store settings.
type VectorDBConfig struct {
	Dimension  int    `yaml:"dimension"`
	IndexType  string `yaml:"index_type"`
	StorageDir string `yaml:"storage_dir"`
}

// ChunkingConfig holds chunker settings. Overlap is a pointer so an explicit 0 survives defaults.
type ChunkingConfig struct {
	ChunkSize int  `yaml:"chunk_size"`
	Overlap   *int `yaml:"overlap,omitempty"`
}

// OverlapOrDefault returns the configured overlap, or the default when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return DefaultChunkOverlap
}

// DataConfig locates the source documents and the generated profile.
type DataConfig struct {
	Directory   string `yaml:"directory"`
	ProfilePath string `yaml:"profile_path"`
}

// LoggingConfig holds log level and optional log file.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses the config file at path, applies defaults, and resolves
// relative paths against the config file directory.
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
	if err := yaml.Unmarshal(data, &cfg.raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with every default applied and relative paths
// resolved against baseDir. Used when no config file exists.
func Default(baseDir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.resolvePaths(baseDir)
	return cfg
}

func (c *Config) resolvePaths(baseDir string) {
	c.AI.Embedding.ModelDir = expandPath(c.AI.Embedding.ModelDir, baseDir)
	c.AI.VectorDB.StorageDir = expandPath(c.AI.VectorDB.StorageDir, baseDir)
	c.Data.Directory = expandPath(c.Data.Directory, baseDir)
	c.Data.ProfilePath = expandPath(c.Data.ProfilePath, baseDir)
	c.Logging.LogFile = expandPath(c.Logging.LogFile, baseDir)
}

// Save writes the config to path. Sections of the loaded file that the struct does
// not model are written back alongside the typed fields; typed values win.
func Save(path string, cfg *Config) error {
	out := merge(merge(map[string]any{}, cfg.raw), cfg.typed())
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get looks up a dot-separated key such as "ai_settings.vector_db.dimension".
// Typed fields (with defaults applied) are consulted first, then any extra keys
// from the loaded file. Returns def when the key is absent at any level.
func (c *Config) Get(key string, def any) any {
	if key == "" {
		return def
	}
	parts := strings.Split(key, ".")
	if v, ok := lookup(c.typed(), parts); ok {
		return v
	}
	if v, ok := lookup(c.raw, parts); ok {
		return v
	}
	return def
}

// typed renders the struct fields as a generic map so Get sees defaults and resolved paths.
func (c *Config) typed() map[string]any {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// merge copies src into dst, descending into nested maps, and returns dst.
func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = map[string]any{}
		}
		dst[k] = merge(existing, sub)
	}
	return dst
}

func lookup(m map[string]any, parts []string) (any, bool) {
	var cur any = m
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// expandPath converts a path to absolute. "~/" is relative to the home directory;
// any other relative path is relative to baseDir.
func expandPath(path string, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(baseDir, path)); err == nil {
		return abs
	}
	return filepath.Join(baseDir, path)
}
