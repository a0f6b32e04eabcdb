package keyword

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotae/internal/models"
)

var errClosed = errors.New("keyword index is closed")

// chunkDoc is the bleve document for one stored chunk.
type chunkDoc struct {
	Doc     string `json:"doc"`
	Content string `json:"content"`
}

// BleveIndex implements KeywordIndex with an in-memory Bleve index that is
// replaced wholesale on every Rebuild.
type BleveIndex struct {
	mu      sync.RWMutex
	mapping mapping.IndexMapping
	index   bleve.Index
	// term -> document frequency of the content field, refreshed on Rebuild.
	terms map[string]int
}

// NewBleveIndex creates an empty in-memory keyword index.
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match the exact word.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("doc", textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{mapping: im, index: index, terms: map[string]int{}}, nil
}

// Rebuild replaces the index contents with chunks. Document IDs are row numbers.
// On failure the previous contents stay searchable.
func (b *BleveIndex) Rebuild(ctx context.Context, chunks []models.StoredChunk) error {
	next, err := bleve.NewMemOnly(b.mapping)
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := next.NewBatch()
	for row, c := range chunks {
		if err := ctx.Err(); err != nil {
			_ = next.Close()
			return err
		}
		if err := batch.Index(strconv.Itoa(row), chunkDoc{Doc: c.DocumentID, Content: c.Content}); err != nil {
			_ = next.Close()
			return fmt.Errorf("index chunk %d: %w", row, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		_ = next.Close()
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	terms, err := fieldTerms(next, "content")
	if err != nil {
		_ = next.Close()
		return err
	}

	b.mu.Lock()
	prev := b.index
	b.index = next
	b.terms = terms
	b.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func fieldTerms(idx bleve.Index, field string) (map[string]int, error) {
	dict, err := idx.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("read %s dictionary: %w", field, err)
	}
	defer dict.Close()
	terms := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read %s dictionary: %w", field, err)
		}
		if entry == nil {
			return terms, nil
		}
		terms[entry.Term] = int(entry.Count)
	}
}

// Search runs a match query over content (and doc, when boosted) and returns
// up to limit hits by descending score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]KeywordResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	docBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.DocumentBoost > 0 {
			docBoost = opts.DocumentBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, "content")
	} else {
		cq := bleve.NewMatchQuery(query)
		cq.SetField("content")
		q = cq
	}
	if docBoost > 1.0 {
		dq := bleve.NewMatchQuery(query)
		dq.SetField("doc")
		dq.SetBoost(docBoost)
		q = bleve.NewDisjunctionQuery(q, dq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	b.mu.RLock()
	if b.index == nil {
		b.mu.RUnlock()
		return nil, errClosed
	}
	results, err := b.index.SearchInContext(ctx, req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected Bleve document id %q", hit.ID)
		}
		out = append(out, KeywordResult{Row: row, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, errClosed
	}
	return b.index.DocCount()
}

// GetAllTerms returns the content vocabulary of the current index.
func (b *BleveIndex) GetAllTerms() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	terms := make([]string, 0, len(b.terms))
	for t := range b.terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms, nil
}

// GetTermFrequency returns the number of chunks containing term.
func (b *BleveIndex) GetTermFrequency(term string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.terms[term], nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
