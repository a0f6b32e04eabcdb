package vector

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small datasets (<10k vectors).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses FAISS IndexFlatL2. Requires the FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// Factory creates an empty index of the given dimension.
type Factory func(dimensions int) (VectorIndex, error)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "faiss".
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown index type: %s (supported: memory, faiss)", models.ErrInvalidConfiguration, indexType)
	}
}

// FactoryFor returns a Factory bound to indexType.
func FactoryFor(indexType string) Factory {
	return func(dimensions int) (VectorIndex, error) {
		return NewVectorIndex(indexType, dimensions)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
