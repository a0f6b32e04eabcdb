// Package vector provides exact L2 nearest-neighbour indexes over dense vectors.
package vector

import "context"

// VectorIndex stores vectors in insertion order and answers k-nearest-neighbour
// queries by Euclidean distance. Row i is the i-th vector added since the last Reset.
type VectorIndex interface {
	Reset()
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single search hit: the row of the stored vector and its
// Euclidean distance to the query.
type Neighbor struct {
	Row      int
	Distance float64
}
