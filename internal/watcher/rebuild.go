package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

// Rebuilder re-ingests a set of directories into one registry session.
type Rebuilder struct {
	ingestor  *indexer.Ingestor
	sessions  *retrieval.Registry
	session   string
	dirs      []string
	recursive bool
	logger    *zap.Logger
}

// NewRebuilder creates a rebuilder targeting retrieval.DefaultSession.
func NewRebuilder(ingestor *indexer.Ingestor, sessions *retrieval.Registry, dirs []string, recursive bool, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{
		ingestor:  ingestor,
		sessions:  sessions,
		session:   retrieval.DefaultSession,
		dirs:      append([]string(nil), dirs...),
		recursive: recursive,
		logger:    logger,
	}
}

// Rebuild ingests every directory and rebuilds the session's index. Files
// that cannot be read are skipped. An empty corpus leaves the previous index
// in place.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	var docs models.Documents
	for _, dir := range r.dirs {
		got, err := r.ingestor.IngestDirectory(ctx, dir, r.recursive)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, models.ErrInvalidConfiguration) || got == nil {
				return fmt.Errorf("ingest %s: %w", dir, err)
			}
			r.logger.Warn("some files were skipped", zap.String("dir", dir), zap.Error(err))
		}
		docs = append(docs, got...)
	}
	engine, err := r.sessions.GetOrCreate(r.session)
	if err != nil {
		return err
	}
	if err := engine.BuildIndex(ctx, docs); err != nil {
		return err
	}
	stats := engine.Stats()
	r.logger.Info("session rebuilt",
		zap.String("session", r.session),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", stats.TotalChunks))
	return nil
}

// OnChange adapts Rebuild to the Watcher callback, logging failures.
func (r *Rebuilder) OnChange(ctx context.Context) {
	if err := r.Rebuild(ctx); err != nil {
		if errors.Is(err, models.ErrEmptyCorpus) {
			r.logger.Warn("watched directories have no content; keeping previous index", zap.String("session", r.session))
			return
		}
		r.logger.Error("rebuild failed", zap.String("session", r.session), zap.Error(err))
	}
}
