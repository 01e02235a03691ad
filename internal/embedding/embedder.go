// Package embedding turns text into fixed-length vectors via an external
// sentence-embedding service. The model itself is a black box; this package
// only owns the wire contract and retry policy.
package embedding

import "context"

// Embedder converts texts into numeric vector representations.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is 0 until the first successful Embed call latches it.
	Dimension() int
}
