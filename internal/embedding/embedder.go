// Package embedding maps text to fixed-dimension dense vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch returns one vector
// per input, in input order. Dimensions is constant for the embedder's lifetime.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}
