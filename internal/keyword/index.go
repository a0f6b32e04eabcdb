// Package keyword provides BM25 keyword search over the chunk store and
// spelling suggestions from the indexed vocabulary.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// DocumentBoost multiplies the score contribution from matches in the document ID.
	// Values > 1 make ID (file name) matches rank higher. Use 1.0 for no boost.
	DocumentBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search over stored chunks. Hits refer to the
// chunk's row in the slice passed to the last Rebuild.
type KeywordIndex interface {
	Rebuild(ctx context.Context, chunks []models.StoredChunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Row   int
	Score float64
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
}
