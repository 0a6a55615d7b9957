package testutil

import "math"

// VectorDim matches the vector(768) column in the passages table.
const VectorDim = 768

// SeedVector returns a deterministic unit vector for seed. Distinct seeds
// produce distinct directions, so similarity between a stored passage and
// a query vector is controllable in tests without a real embedder.
func SeedVector(seed int) []float32 {
	v := make([]float32, VectorDim)
	var norm float64
	for i := range v {
		// Simple deterministic pseudo-random values in (-1, 1).
		x := math.Sin(float64(seed*31 + i + 1))
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
