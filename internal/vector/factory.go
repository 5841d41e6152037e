package vector

import "fmt"

// IndexType names a similarity index variant.
type IndexType string

const (
	// IndexTypeFlat is exact brute-force search. It is the only variant with its own implementation.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeIVF is accepted for configuration compatibility and currently builds a flat index.
	IndexTypeIVF IndexType = "ivf"
	// IndexTypeHNSW is accepted for configuration compatibility and currently builds a flat index.
	IndexTypeHNSW IndexType = "hnsw"
)

// SupportedIndexTypes lists the accepted index kinds.
var SupportedIndexTypes = []IndexType{IndexTypeFlat, IndexTypeIVF, IndexTypeHNSW}

// NewVectorIndex creates an empty index of the given kind. An empty kind means flat.
// ivf and hnsw have no approximate implementation yet; they return an exact index
// whose Type() still reports the requested kind.
func NewVectorIndex(indexType string, dimensions int) (Index, error) {
	kind, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	return newFlatIndex(dimensions, kind)
}

// ParseIndexType validates an index kind string.
func ParseIndexType(indexType string) (IndexType, error) {
	if indexType == "" {
		return IndexTypeFlat, nil
	}
	for _, t := range SupportedIndexTypes {
		if IndexType(indexType) == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: flat, ivf, hnsw)", ErrUnsupportedIndexType, indexType)
}

