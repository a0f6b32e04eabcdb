package models

// ChunkMatch is a single retrieval hit. Similarity is 1/(1+Distance), where
// Distance is the Euclidean distance between the query and chunk embeddings.
type ChunkMatch struct {
	DocumentID string  `json:"doc"`
	Chunk      string  `json:"chunk"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// KeywordMatch is a lexical hit from the keyword index.
type KeywordMatch struct {
	DocumentID string  `json:"doc"`
	Chunk      string  `json:"chunk"`
	Score      float64 `json:"score"`
}

// Stats is a read-only snapshot of an engine. TotalChunks and IndexSize are
// equal whenever the chunk store and vector index are aligned.
type Stats struct {
	TotalChunks     int  `json:"total_chunks"`
	IndexSize       int  `json:"index_size"`
	VectorDimension int  `json:"vector_dimension"`
	IsBuilt         bool `json:"is_built"`
}

// Consistent reports whether the chunk store and vector index have the same row count.
func (s Stats) Consistent() bool {
	return s.TotalChunks == s.IndexSize
}
