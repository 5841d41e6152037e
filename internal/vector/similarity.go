package vector

import "github.com/viant/vec/search"

// SquaredL2 returns the squared Euclidean distance between two vectors of equal length.
// For unit vectors the result lies in [0, 4] and equals 2 - 2*cos(a, b).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2Norm returns the Euclidean length of x.
func L2Norm(x []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	return search.Float32s(x).Magnitude()
}

// NormalizeL2 scales x in place to unit length. A zero vector is left unchanged.
func NormalizeL2(x []float32) {
	norm := L2Norm(x)
	if norm == 0 {
		return
	}
	inv := 1 / norm
	for i := range x {
		x[i] *= inv
	}
}

// SimilarityFromDistance maps a distance to a score in (0, 1]: 0 maps to 1 and the score
// decreases monotonically as the distance grows.
func SimilarityFromDistance(distance float32) float64 {
	return 1 / (1 + float64(distance))
}
