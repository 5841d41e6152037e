package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/careervec/internal/vector"
)

// HashEmbedder is a deterministic, offline embedder. Each lowercased word is hashed
// into a bucket (feature hashing), so texts sharing words land close together.
// It needs no model files and is used for tests and provider "hash".
type HashEmbedder struct {
	model      string
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions.
func NewHashEmbedder(model string, dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	if model == "" {
		model = "hash"
	}
	return &HashEmbedder{model: model, dimensions: dimensions}
}

// Embed returns a unit-length embedding; text without words maps to the first basis vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := HashString(w)
		if h&1 == 0 {
			emb[h%e.dimensions] += 1
		} else {
			emb[h%e.dimensions] -= 1
		}
	}
	if len(words) == 0 {
		emb[0] = 1
	}
	vector.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the configured model name.
func (e *HashEmbedder) ModelName() string {
	return e.model
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
