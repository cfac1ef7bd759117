package service

import (
	"context"
	"math"
)

// Embedder defines the interface for text embedding services
type Embedder interface {
	// Embed converts a text string into a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)
}

// cosineSimilarity returns 0 when either vector has zero length or norm, or
// when the dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
