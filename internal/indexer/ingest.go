package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// DefaultExtensions are the plain-text file types read without any format decoding.
var DefaultExtensions = []string{".txt", ".md"}

// Ingestor reads plain-text files and chunks them into Documents keyed by absolute path.
type Ingestor struct {
	chunker    *Chunker
	extensions []string
	logger     *zap.Logger // optional; when set, logs debug events
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets a logger for debug output (file read, file skipped, etc.).
func WithLogger(l *zap.Logger) IngestorOption {
	return func(in *Ingestor) { in.logger = l }
}

// WithExtensions restricts ingestion to the given extensions (case-insensitive, dot optional).
// An empty list keeps DefaultExtensions.
func WithExtensions(exts []string) IngestorOption {
	return func(in *Ingestor) {
		if len(exts) > 0 {
			in.extensions = append([]string(nil), exts...)
		}
	}
}

// NewIngestor creates an ingestor. A nil chunker uses DefaultChunker.
func NewIngestor(chunker *Chunker, opts ...IngestorOption) *Ingestor {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	in := &Ingestor{
		chunker:    chunker,
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Extensions returns the accepted file extensions.
func (in *Ingestor) Extensions() []string {
	return append([]string(nil), in.extensions...)
}

// IngestText chunks text into a document with the given id.
func (in *Ingestor) IngestText(id, text string) (models.Document, error) {
	chunks, err := in.chunker.Chunk(Preprocess(text))
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{ID: id, Chunks: chunks}, nil
}

// IngestFile reads and chunks a single file. The document ID is its absolute path.
func (in *Ingestor) IngestFile(path string) (models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("absolute path: %w", err)
	}
	if !extensionAllowed(filepath.Ext(absPath), in.extensions) {
		return models.Document{}, fmt.Errorf("unsupported file type %q: %s", filepath.Ext(absPath), absPath)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return models.Document{}, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return models.Document{}, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return models.Document{}, fmt.Errorf("read file: %w", err)
	}
	doc, err := in.IngestText(absPath, string(content))
	if err != nil {
		return models.Document{}, err
	}
	if in.logger != nil {
		in.logger.Debug("ingestor file chunked", zap.String("path", absPath), zap.Int("chunks", len(doc.Chunks)))
	}
	return doc, nil
}

// IngestFiles ingests each path in order. Files that fail are skipped and their
// errors are joined into the returned error; the documents that did load are
// still returned. Only a cancelled context or a chunker misconfiguration stops early.
func (in *Ingestor) IngestFiles(ctx context.Context, paths []string) (models.Documents, error) {
	docs := make(models.Documents, 0, len(paths))
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		doc, err := in.IngestFile(path)
		if err != nil {
			if errors.Is(err, models.ErrInvalidConfiguration) {
				return nil, err
			}
			if in.logger != nil {
				in.logger.Warn("ingestor skipping file", zap.String("path", path), zap.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errors.Join(errs...)
}

// CollectFiles walks dir and returns the regular files with an accepted
// extension, in lexical order. When recursive is false only the top level is read.
func (in *Ingestor) CollectFiles(dir string, recursive bool) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), in.extensions) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// IngestDirectory ingests every accepted file under dir.
func (in *Ingestor) IngestDirectory(ctx context.Context, dir string, recursive bool) (models.Documents, error) {
	paths, err := in.CollectFiles(dir, recursive)
	if err != nil {
		return nil, err
	}
	return in.IngestFiles(ctx, paths)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
