// Package embedding provides shared vector helpers for the embedding
// service adapters.
package embedding

import "math"

// Normalise scales v to unit L2 norm in place and returns it. With
// unit vectors on both sides, inner product equals cosine similarity,
// which is what the vector index computes. A zero vector is returned
// unchanged.
func Normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
