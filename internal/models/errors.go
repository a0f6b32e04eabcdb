package models

import "errors"

// Error taxonomy shared by the chunker, the engine and its outer surfaces.
// Callers branch with errors.Is; wrapped errors keep their cause.
var (
	// ErrInvalidConfiguration reports bad chunking or engine parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyCorpus reports that no usable chunk survived ingestion.
	ErrEmptyCorpus = errors.New("no valid chunks to index")
	// ErrEmbeddingFailure reports a provider-level embedding failure.
	ErrEmbeddingFailure = errors.New("embedding failed")
	// ErrIndexNotReady reports a query before any successful build or on an empty index.
	ErrIndexNotReady = errors.New("index not built or empty")
	// ErrInvalidQuery reports an empty question or bad query options.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidIndex reports a vector row that has no chunk store entry.
	ErrInvalidIndex = errors.New("vector index and chunk store are misaligned")
)
