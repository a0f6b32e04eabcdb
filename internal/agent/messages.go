// Package agent implements the agents that cooperate over the message bus:
// ingestion turns files into chunked documents, retrieval builds and queries
// the engine, and the collector hands final replies back to callers.
package agent

import "github.com/hyperjump/kotae/internal/models"

// Receiver names on the bus.
const (
	IngestionAgentName = "IngestionAgent"
	RetrievalAgentName = "RetrievalAgent"
	CollectorName      = "Collector"
)

// UploadPayload asks the ingestion agent to load files and directories.
type UploadPayload struct {
	Paths       []string
	Directories []string
	Recursive   bool
}

// DocumentsParsedPayload carries ingested documents to the retrieval agent.
type DocumentsParsedPayload struct {
	Documents models.Documents
	// Skipped lists files that could not be read.
	Skipped []string
}

// IndexBuiltPayload reports a successful build.
type IndexBuiltPayload struct {
	Stats   models.Stats
	Skipped []string
}

// QueryPayload asks the retrieval agent for context chunks.
type QueryPayload struct {
	Question string
	Options  models.QueryOptions
}

// ContextResponsePayload carries the chunks retrieved for a question.
type ContextResponsePayload struct {
	Question string
	Matches  []models.ChunkMatch
}

// ErrorPayload reports a failed step of a trace.
type ErrorPayload struct {
	Err error
}
