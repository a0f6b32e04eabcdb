package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func sampleChunks() []models.StoredChunk {
	return []models.StoredChunk{
		{DocumentID: "cats.txt", Content: "Cats are small domesticated carnivorous mammals."},
		{DocumentID: "dogs.txt", Content: "Dogs are loyal companions and were domesticated from wolves."},
		{DocumentID: "go.md", Content: "Go is a statically typed compiled programming language."},
	}
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Rebuild(context.Background(), sampleChunks()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "programming language", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Row != 2 {
		t.Fatalf("results = %+v, want row 2 only", results)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", results[0].Score)
	}
}

func TestBleveIndex_SearchOrderedByScore(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "domesticated", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted by descending score: %+v", results)
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "domesticated", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	exact, _ := idx.Search(ctx, "wolvs", 10, nil)
	if len(exact) != 0 {
		t.Fatalf("exact search should not match typo, got %+v", exact)
	}
	fuzzy, err := idx.Search(ctx, "wolvs", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 || fuzzy[0].Row != 1 {
		t.Errorf("fuzzy results = %+v, want row 1", fuzzy)
	}
}

func TestBleveIndex_DocumentBoost(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "cats", 10, &SearchOptions{DocumentBoost: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Row != 0 {
		t.Errorf("results = %+v, want row 0 first", results)
	}
}

func TestBleveIndex_RebuildReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Rebuild(ctx, []models.StoredChunk{{DocumentID: "x", Content: "entirely new text"}}); err != nil {
		t.Fatal(err)
	}
	n, err := idx.DocCount()
	if err != nil || n != 1 {
		t.Fatalf("DocCount = %d, %v; want 1", n, err)
	}
	if results, _ := idx.Search(ctx, "cats", 10, nil); len(results) != 0 {
		t.Errorf("old chunks still searchable: %+v", results)
	}
	freq, _ := idx.GetTermFrequency("entirely")
	if freq != 1 {
		t.Errorf("GetTermFrequency(entirely) = %d, want 1", freq)
	}
	terms, _ := idx.GetAllTerms()
	if len(terms) != 3 {
		t.Errorf("GetAllTerms = %v, want 3 terms", terms)
	}
}

func TestBleveIndex_SpellCheckerOverVocabulary(t *testing.T) {
	idx := newTestIndex(t)
	corrected, changed, err := NewSpellChecker(idx).Correct("programing langauge")
	if err != nil {
		t.Fatal(err)
	}
	if !changed || corrected != "programming language" {
		t.Errorf("Correct = %q, %v", corrected, changed)
	}
}

func TestBleveIndex_Closed(t *testing.T) {
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Close()
	if _, err := idx.Search(context.Background(), "x", 1, nil); err == nil {
		t.Error("expected error after Close")
	}
}
