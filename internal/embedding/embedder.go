// Package embedding turns text into dense vectors. Providers are ONNX (local model),
// Ollama (HTTP) and a deterministic hash embedder for offline use.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/careervec/internal/config"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// Provider names accepted in ai_settings.embedding.provider.
const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown embedding provider")

const pingTimeout = 5 * time.Second

// New builds the embedder selected by cfg.Embedding.Provider. A model that cannot be
// loaded or a server that cannot be reached is an error; there is no fallback model.
func New(cfg config.AISettings, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dim := cfg.VectorDB.Dimension
	switch cfg.Embedding.Provider {
	case ProviderHash:
		logger.Info("using hash embedder", zap.String("model", cfg.EmbeddingModel), zap.Int("dimensions", dim))
		return NewHashEmbedder(cfg.EmbeddingModel, dim), nil

	case ProviderOllama:
		emb := NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.Embedding.OllamaURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: dim,
			CacheSize:  cfg.Embedding.CacheSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := emb.Ping(ctx); err != nil {
			return nil, fmt.Errorf("load embedding model %q: %w", cfg.EmbeddingModel, err)
		}
		logger.Info("using ollama embedder",
			zap.String("url", cfg.Embedding.OllamaURL),
			zap.String("model", cfg.EmbeddingModel))
		return emb, nil

	case ProviderONNX, "":
		modelPath := ModelPath(cfg.Embedding.ModelDir, cfg.EmbeddingModel)
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("load embedding model %q: %w", cfg.EmbeddingModel, err)
		}
		emb, err := NewONNXEmbedder(cfg.EmbeddingModel, modelPath, dim, cfg.Embedding.MaxTokens, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("load embedding model %q: %w", cfg.EmbeddingModel, err)
		}
		logger.Info("using onnx embedder", zap.String("model_path", modelPath), zap.Int("dimensions", dim))
		return emb, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Embedding.Provider)
	}
}

// ModelPath returns the ONNX file expected for a model name: <dir>/<name>.onnx.
func ModelPath(modelDir, modelName string) string {
	return filepath.Join(modelDir, modelName+".onnx")
}
