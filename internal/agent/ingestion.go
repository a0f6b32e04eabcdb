package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/bus"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// IngestionAgent handles UPLOAD messages and forwards DOCUMENTS_PARSED to the
// retrieval agent.
type IngestionAgent struct {
	bus      *bus.Bus
	ingestor *indexer.Ingestor
	logger   *zap.Logger
}

// NewIngestionAgent creates the agent; call Register to subscribe it.
func NewIngestionAgent(b *bus.Bus, ingestor *indexer.Ingestor, logger *zap.Logger) *IngestionAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionAgent{bus: b, ingestor: ingestor, logger: logger}
}

// Register subscribes the agent under IngestionAgentName.
func (a *IngestionAgent) Register() {
	a.bus.Subscribe(IngestionAgentName, a.Handle)
}

// Handle processes one UPLOAD message.
func (a *IngestionAgent) Handle(ctx context.Context, msg bus.Message) error {
	if msg.Type != bus.TypeUpload {
		return fmt.Errorf("ingestion agent: unexpected message type %s", msg.Type)
	}
	payload, ok := msg.Payload.(UploadPayload)
	if !ok {
		return replyError(ctx, a.bus, IngestionAgentName, msg, fmt.Errorf("ingestion agent: bad payload %T", msg.Payload))
	}

	docs, skipped, err := a.ingest(ctx, payload)
	if err != nil {
		return replyError(ctx, a.bus, IngestionAgentName, msg, err)
	}
	a.logger.Debug("upload ingested",
		zap.String("trace_id", msg.TraceID),
		zap.Int("documents", len(docs)),
		zap.Int("skipped", len(skipped)))

	_, err = a.bus.Send(ctx, bus.Message{
		Sender:   IngestionAgentName,
		Receiver: RetrievalAgentName,
		ReplyTo:  msg.ReplyTo,
		Type:     bus.TypeDocumentsParsed,
		TraceID:  msg.TraceID,
		Payload:  DocumentsParsedPayload{Documents: docs, Skipped: skipped},
	})
	return err
}

// ingest loads every path and directory. Unreadable files are skipped and
// reported; a bad chunker configuration or cancellation aborts.
func (a *IngestionAgent) ingest(ctx context.Context, p UploadPayload) (models.Documents, []string, error) {
	paths := append([]string(nil), p.Paths...)
	for _, dir := range p.Directories {
		files, err := a.ingestor.CollectFiles(dir, p.Recursive)
		if err != nil {
			return nil, nil, fmt.Errorf("collect %s: %w", dir, err)
		}
		paths = append(paths, files...)
	}

	docs, err := a.ingestor.IngestFiles(ctx, paths)
	if err == nil {
		return docs, nil, nil
	}
	if errors.Is(err, models.ErrInvalidConfiguration) || ctx.Err() != nil {
		return nil, nil, err
	}
	loaded := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		loaded[d.ID] = struct{}{}
	}
	var skipped []string
	for _, p := range paths {
		if _, ok := loaded[absOrSelf(p)]; !ok {
			skipped = append(skipped, p)
		}
	}
	a.logger.Warn("some files were skipped", zap.Strings("paths", skipped), zap.Error(err))
	return docs, skipped, nil
}
