// Package cli provides output helpers for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const previewLen = 200

type matchesOutput struct {
	Query   string              `json:"query"`
	Matches []models.ChunkMatch `json:"matches"`
}

// WriteMatches writes retrieved chunks for query to w in the given format.
func WriteMatches(w io.Writer, query string, matches []models.ChunkMatch, format OutputFormat) error {
	if format == OutputJSON {
		if matches == nil {
			matches = []models.ChunkMatch{}
		}
		return writeJSON(w, matchesOutput{Query: query, Matches: matches})
	}
	fmt.Fprintf(w, "\nFound %d matching chunks for %q\n\n", len(matches), query)
	for i, m := range matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Distance: %.4f\n", i+1, m.Similarity, m.Distance)
		fmt.Fprintf(w, "Document: %s\n", m.DocumentID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.SingleLine(m.Chunk), previewLen))
	}
	return nil
}

// WriteChunks lists the chunks of one document.
func WriteChunks(w io.Writer, doc models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if doc.Chunks == nil {
			doc.Chunks = []string{}
		}
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "%s: %d chunks\n", doc.ID, len(doc.Chunks))
	for i, c := range doc.Chunks {
		fmt.Fprintf(w, "\n[%d] %s\n", i, c)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
