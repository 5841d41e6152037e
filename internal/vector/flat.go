package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	flatMagic   = "CVIX"
	flatVersion = uint32(1)
	// magic (4) + version (4) + dimensions (4) + count (4)
	flatHeaderSize = 16
)

// FlatIndex is an exact (brute-force) index over squared Euclidean distance.
// Vectors are kept in one contiguous slice in insertion order.
type FlatIndex struct {
	dimensions int
	kind       IndexType
	data       []float32
	count      int
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty exact index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	return newFlatIndex(dimensions, IndexTypeFlat)
}

func newFlatIndex(dimensions int, kind IndexType) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidArgument, dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		kind:       kind,
		data:       make([]float32, 0),
	}, nil
}

// Type returns the index kind this index was requested as.
func (f *FlatIndex) Type() string {
	return string(f.kind)
}

// Dimensions returns the vector length.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Add appends vectors. The whole batch is validated before anything is appended.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d elements, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vec := range vectors {
		f.data = append(f.data, vec...)
	}
	f.count += len(vectors)
	return nil
}

// Search scans every vector and returns the k closest by squared Euclidean distance.
// Equal distances are ordered by position so results are stable across runs.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d elements, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || f.count == 0 {
		return []Neighbor{}, nil
	}
	if k > f.count {
		k = f.count
	}
	neighbors := make([]Neighbor, f.count)
	for pos := 0; pos < f.count; pos++ {
		off := pos * f.dimensions
		neighbors[pos] = Neighbor{
			Distance: SquaredL2(query, f.data[off:off+f.dimensions]),
			Position: pos,
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Position < neighbors[j].Position
	})
	return neighbors[:k], nil
}

// Vector returns a copy of the vector stored at pos.
func (f *FlatIndex) Vector(pos int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos < 0 || pos >= f.count {
		return nil, false
	}
	out := make([]float32, f.dimensions)
	copy(out, f.data[pos*f.dimensions:(pos+1)*f.dimensions])
	return out, true
}

// MarshalBinary encodes the index. Format (little endian): magic "CVIX", version (4),
// dimensions (4), count (4), then count*dimensions float32 values in insertion order.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]byte, flatHeaderSize+len(f.data)*4)
	copy(out[0:4], flatMagic)
	binary.LittleEndian.PutUint32(out[4:8], flatVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(f.dimensions))
	binary.LittleEndian.PutUint32(out[12:16], uint32(f.count))
	body := out[flatHeaderSize:]
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(v))
	}
	return out, nil
}

// UnmarshalBinary replaces the index contents with the encoded data.
// The encoded dimension must equal the index dimension.
func (f *FlatIndex) UnmarshalBinary(data []byte) error {
	if len(data) < flatHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptIndex, len(data))
	}
	if string(data[0:4]) != flatMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, data[0:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != flatVersion {
		return fmt.Errorf("%w: unknown version %d", ErrCorruptIndex, v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	if dim != f.dimensions {
		return fmt.Errorf("%w: data has %d dimensions, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	body := data[flatHeaderSize:]
	if len(body) != n*dim*4 {
		return fmt.Errorf("%w: payload is %d bytes, want %d for %d vectors", ErrCorruptIndex, len(body), n*dim*4, n)
	}
	values := make([]float32, n*dim)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = values
	f.count = n
	return nil
}
