//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"math"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 2},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d, want 3", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Row != 1 {
		t.Errorf("top result should be row 1, got %d", results[0].Row)
	}
	// Distances are Euclidean, not squared: |(1,0,0)-(0,0,2)| = sqrt(5).
	if math.Abs(results[2].Distance-math.Sqrt(5)) > 1e-5 {
		t.Errorf("distance = %f, want sqrt(5)", results[2].Distance)
	}
}

func TestFAISSIndex_SearchEmpty(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestFAISSIndex_Reset(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})
	idx.Reset()
	if idx.Size() != 0 {
		t.Errorf("expected size 0 after Reset, got %d", idx.Size())
	}
	_ = idx.Add(ctx, [][]float32{{0, 1}})
	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Row != 0 {
		t.Errorf("rows should restart at 0 after Reset, got %+v", results)
	}
}
