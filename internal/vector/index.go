// Package vector provides similarity index implementations and a factory for creating them.
package vector

import (
	"context"
	"encoding"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidArgument is returned for non-positive dimensions and similar caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedIndexType is returned by NewVectorIndex for unknown index kinds.
	ErrUnsupportedIndexType = errors.New("unsupported index type")
	// ErrCorruptIndex is returned when serialized index bytes cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index data")
)

// Index is an append-only collection of vectors answering k-nearest-neighbor queries.
// A vector's position (insertion order, starting at 0) is its identity; callers use it
// as the join key to any parallel metadata.
type Index interface {
	// Add appends vectors in order. Every vector must have Dimensions() elements;
	// otherwise nothing is appended and ErrDimensionMismatch is returned.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbors of query ordered by ascending distance.
	// An empty index or k <= 0 yields an empty result, never an error.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Size returns the number of vectors in the index.
	Size() int
	// Dimensions returns the fixed vector length.
	Dimensions() int
	// Type returns the configured index kind.
	Type() string

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Neighbor is a single search hit: the squared Euclidean distance to the query and the
// position of the matched vector in the index.
type Neighbor struct {
	Distance float32
	Position int
}
