package models

import (
	"fmt"
	"strings"
)

// DefaultTopK is the number of matches returned when QueryOptions.TopK is zero.
const DefaultTopK = 5

// QueryOptions tunes a retrieval query.
type QueryOptions struct {
	// TopK is the maximum number of neighbors to search for. Zero means DefaultTopK.
	TopK int `json:"top_k,omitempty"`
	// SimilarityThreshold drops matches with a lower similarity. Nil disables filtering.
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// Threshold returns a pointer to v, for use as QueryOptions.SimilarityThreshold.
func Threshold(v float64) *float64 {
	return &v
}

// Normalize validates the options and returns a copy with defaults applied.
func (o QueryOptions) Normalize() (QueryOptions, error) {
	if o.TopK < 0 {
		return o, fmt.Errorf("%w: top_k must not be negative, got %d", ErrInvalidQuery, o.TopK)
	}
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	return o, nil
}

// NormalizeQuestion trims the question and rejects blank input.
func NormalizeQuestion(question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	return q, nil
}
