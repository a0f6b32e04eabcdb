package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/hyperjump/kotae/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and offline
// runs. Each word contributes a fixed pseudo-random direction, so texts that
// share words end up close together and identical texts embed identically.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a mock embedder of the given dimensions (384 when not positive).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the normalized sum of the word vectors of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc := make([]float64, e.dimensions)
	for _, word := range mockWords(text) {
		h := HashString(word)
		for i := range acc {
			acc[i] += math.Sin(float64(h*(i+1)) + float64(i))
		}
	}
	emb := make([]float32, e.dimensions)
	for i, v := range acc {
		emb[i] = float32(v)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func mockWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName identifies the mock model.
func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}
