// Package retrieval implements the retrieval engine: it embeds a chunked
// corpus into a vector index and answers nearest-chunk queries against it.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Query kinds reported to metrics.
const (
	kindVector  = "vector"
	kindKeyword = "keyword"
)

// Engine owns one chunk store and the vector index aligned with it: row i of
// the index is the embedding of store[i]. All state is guarded by mu.
type Engine struct {
	embedder   embedding.Embedder
	dimensions int

	mu           sync.RWMutex
	index        vector.VectorIndex
	store        []models.StoredChunk
	built        bool
	keyword      keyword.KeywordIndex
	keywordReady bool
	spell        *keyword.SpellChecker

	indexFactory vector.Factory
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithIndexFactory sets the vector index constructor. Default: in-memory L2 index.
func WithIndexFactory(f vector.Factory) Option {
	return func(e *Engine) {
		if f != nil {
			e.indexFactory = f
		}
	}
}

// WithLogger sets the logger for build and query events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithKeywordIndex enables QueryKeyword and Suggest. The index is rebuilt with
// every BuildIndex and closed with the engine.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(e *Engine) {
		e.keyword = k
	}
}

// WithMetrics records build and query metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an empty, unbuilt engine whose index dimension is fixed to
// embedder.Dimensions().
func NewEngine(embedder embedding.Embedder, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", models.ErrInvalidConfiguration)
	}
	e := &Engine{
		embedder:     embedder,
		dimensions:   embedder.Dimensions(),
		indexFactory: vector.FactoryFor(string(vector.IndexTypeMemory)),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedder dimension must be positive, got %d", models.ErrInvalidConfiguration, e.dimensions)
	}
	index, err := e.indexFactory(e.dimensions)
	if err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	if index.Dimensions() != e.dimensions {
		_ = index.Close()
		return nil, fmt.Errorf("%w: index dimension %d does not match embedder dimension %d",
			models.ErrInvalidConfiguration, index.Dimensions(), e.dimensions)
	}
	e.index = index
	if dict, ok := e.keyword.(keyword.TermDictionary); ok {
		e.spell = keyword.NewSpellChecker(dict)
	}
	return e, nil
}

// BuildIndex replaces the engine's corpus with docs. Blank chunks are dropped
// and survivors trimmed. Embedding happens before any state is touched, so a
// failed build leaves the previous index queryable.
func (e *Engine) BuildIndex(ctx context.Context, docs models.Documents) (err error) {
	started := time.Now()
	chunks := flatten(docs)
	defer func() { e.metrics.ObserveBuild(started, len(chunks), err) }()

	if len(chunks) == 0 {
		return fmt.Errorf("%w: %d documents, %d raw chunks", models.ErrEmptyCorpus, len(docs), docs.ChunkCount())
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	e.logger.Debug("embedding corpus", zap.Int("documents", len(docs)), zap.Int("chunks", len(texts)))
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.logger.Warn("corpus embedding failed", zap.Error(err))
		return fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
	}
	if err := e.checkVectors(vectors, len(texts)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Past this point the swap must complete, so cancellation no longer applies.
	commitCtx := context.WithoutCancel(ctx)
	e.index.Reset()
	if err := e.index.Add(commitCtx, vectors); err != nil {
		e.store = nil
		e.built = false
		e.keywordReady = false
		e.logger.Error("vector index add failed; engine cleared", zap.Error(err))
		return fmt.Errorf("%w: add vectors: %w", models.ErrInvalidIndex, err)
	}
	e.store = chunks
	e.built = true

	if e.keyword != nil {
		e.keywordReady = false
		if err := e.keyword.Rebuild(commitCtx, chunks); err != nil {
			e.logger.Warn("keyword index rebuild failed", zap.Error(err))
		} else if n, err := e.keyword.DocCount(); err != nil || n != uint64(len(chunks)) {
			e.logger.Warn("keyword index out of step with chunk store",
				zap.Uint64("keyword_docs", n), zap.Int("chunks", len(chunks)), zap.Error(err))
		} else {
			e.keywordReady = true
		}
	}

	e.logger.Info("index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", e.dimensions),
		zap.Duration("took", time.Since(started)))
	return nil
}

// flatten lays out the non-blank chunks of docs in document then chunk order.
func flatten(docs models.Documents) []models.StoredChunk {
	chunks := make([]models.StoredChunk, 0, docs.ChunkCount())
	for _, doc := range docs {
		for _, c := range doc.Chunks {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			chunks = append(chunks, models.StoredChunk{DocumentID: doc.ID, Content: c})
		}
	}
	return chunks
}

func (e *Engine) checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: provider returned %d embeddings for %d texts", models.ErrEmbeddingFailure, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != e.dimensions {
			return fmt.Errorf("%w: embedding %d has dimension %d, expected %d",
				models.ErrEmbeddingFailure, i, len(v), e.dimensions)
		}
	}
	return nil
}

// Query returns up to TopK chunks nearest to question, by ascending distance.
// Similarity is 1/(1+distance); matches below SimilarityThreshold are dropped.
func (e *Engine) Query(ctx context.Context, question string, opts models.QueryOptions) (matches []models.ChunkMatch, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveQuery(kindVector, started, err) }()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.built || e.index.Size() == 0 {
		return nil, models.ErrIndexNotReady
	}
	q, err := models.NormalizeQuestion(question)
	if err != nil {
		return nil, err
	}
	opts, err = opts.Normalize()
	if err != nil {
		return nil, err
	}

	vectors, err := e.embedder.EmbedBatch(ctx, []string{q})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
	}
	if err := e.checkVectors(vectors, 1); err != nil {
		return nil, err
	}

	k := min(opts.TopK, e.index.Size())
	neighbors, err := e.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches = make([]models.ChunkMatch, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Row < 0 || n.Row >= len(e.store) {
			e.logger.Error("vector row outside chunk store",
				zap.Int("row", n.Row), zap.Int("store_size", len(e.store)), zap.Int("index_size", e.index.Size()))
			return nil, fmt.Errorf("%w: row %d, chunk store has %d entries", models.ErrInvalidIndex, n.Row, len(e.store))
		}
		similarity := 1 / (1 + n.Distance)
		if opts.SimilarityThreshold != nil && similarity < *opts.SimilarityThreshold {
			continue
		}
		chunk := e.store[n.Row]
		matches = append(matches, models.ChunkMatch{
			DocumentID: chunk.DocumentID,
			Chunk:      chunk.Content,
			Similarity: similarity,
			Distance:   n.Distance,
		})
	}
	e.logger.Debug("query answered", zap.Int("top_k", opts.TopK), zap.Int("matches", len(matches)))
	return matches, nil
}

// QueryKeyword runs a BM25 search over the chunk store. It requires a keyword
// index (WithKeywordIndex). A nil opts runs a plain match query.
func (e *Engine) QueryKeyword(ctx context.Context, question string, topK int, opts *keyword.SearchOptions) (matches []models.KeywordMatch, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveQuery(kindKeyword, started, err) }()

	if e.keyword == nil {
		return nil, fmt.Errorf("%w: keyword search is not enabled", models.ErrInvalidConfiguration)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.built || !e.keywordReady {
		return nil, models.ErrIndexNotReady
	}
	q, err := models.NormalizeQuestion(question)
	if err != nil {
		return nil, err
	}
	if opts != nil && (opts.Fuzziness < 0 || opts.Fuzziness > 2 || opts.DocumentBoost < 0) {
		return nil, fmt.Errorf("%w: fuzziness must be 0-2 and doc boost non-negative", models.ErrInvalidQuery)
	}
	qopts, err := models.QueryOptions{TopK: topK}.Normalize()
	if err != nil {
		return nil, err
	}

	hits, err := e.keyword.Search(ctx, q, qopts.TopK, opts)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	matches = make([]models.KeywordMatch, 0, len(hits))
	for _, h := range hits {
		if h.Row < 0 || h.Row >= len(e.store) {
			e.logger.Error("keyword row outside chunk store", zap.Int("row", h.Row), zap.Int("store_size", len(e.store)))
			return nil, fmt.Errorf("%w: keyword row %d, chunk store has %d entries", models.ErrInvalidIndex, h.Row, len(e.store))
		}
		chunk := e.store[h.Row]
		matches = append(matches, models.KeywordMatch{DocumentID: chunk.DocumentID, Chunk: chunk.Content, Score: h.Score})
	}
	return matches, nil
}

// Suggest returns a spelling-corrected question built from the keyword
// vocabulary, or false when there is nothing to correct.
func (e *Engine) Suggest(question string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.spell == nil || !e.keywordReady {
		return "", false
	}
	corrected, changed, err := e.spell.Correct(question)
	if err != nil {
		e.logger.Debug("spell check failed", zap.Error(err))
		return "", false
	}
	return corrected, changed
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() models.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.Stats{
		TotalChunks:     len(e.store),
		IndexSize:       e.index.Size(),
		VectorDimension: e.dimensions,
		IsBuilt:         e.built,
	}
}

// Close releases the vector and keyword indexes. The embedder is not closed;
// it is usually shared between engines.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.built = false
	e.store = nil
	err := e.index.Close()
	if e.keyword != nil {
		if kerr := e.keyword.Close(); err == nil {
			err = kerr
		}
	}
	return err
}
