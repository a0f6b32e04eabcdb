// Package indexer turns raw document text into the ordered chunk lists the retrieval engine consumes.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Default window parameters, in words.
const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// The window must advance, so chunkSize must be greater than chunkOverlap.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validateWindow(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// DefaultChunker returns a chunker using DefaultChunkSize and DefaultChunkOverlap.
func DefaultChunker() *Chunker {
	return &Chunker{chunkSize: DefaultChunkSize, chunkOverlap: DefaultChunkOverlap}
}

func validateWindow(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidConfiguration, chunkSize)
	}
	if chunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", models.ErrInvalidConfiguration, chunkOverlap)
	}
	if chunkSize-chunkOverlap <= 0 {
		return fmt.Errorf("%w: chunk size %d must exceed overlap %d", models.ErrInvalidConfiguration, chunkSize, chunkOverlap)
	}
	return nil
}

// Size returns the window size in words.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of words shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text on whitespace and returns windows of chunkSize words whose
// starts are chunkSize-chunkOverlap words apart. Every start position before the
// end of the text yields a window, so the tail windows may be short.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if err := validateWindow(c.chunkSize, c.chunkOverlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks, nil
}
