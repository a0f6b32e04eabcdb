package agent

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/bus"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

// Pipeline wires the three agents onto a bus and offers request/response
// helpers on top of it. The caller runs the bus.
type Pipeline struct {
	bus       *bus.Bus
	collector *Collector
}

// NewPipeline registers an ingestion agent, a retrieval agent and a collector on b.
func NewPipeline(b *bus.Bus, ingestor *indexer.Ingestor, engine *retrieval.Engine, logger *zap.Logger) *Pipeline {
	NewIngestionAgent(b, ingestor, logger).Register()
	NewRetrievalAgent(b, engine, logger).Register()
	collector := NewCollector()
	collector.Register(b)
	return &Pipeline{bus: b, collector: collector}
}

// Ingest uploads files and directories and waits until the index is built.
func (p *Pipeline) Ingest(ctx context.Context, upload UploadPayload) (IndexBuiltPayload, error) {
	msg, err := p.roundTrip(ctx, IngestionAgentName, bus.TypeUpload, upload)
	if err != nil {
		return IndexBuiltPayload{}, err
	}
	built, ok := msg.Payload.(IndexBuiltPayload)
	if !ok {
		return IndexBuiltPayload{}, fmt.Errorf("unexpected reply %s", msg.Type)
	}
	return built, nil
}

// Ask queries the index and waits for the retrieved context.
func (p *Pipeline) Ask(ctx context.Context, question string, opts models.QueryOptions) ([]models.ChunkMatch, error) {
	msg, err := p.roundTrip(ctx, RetrievalAgentName, bus.TypeQuery, QueryPayload{Question: question, Options: opts})
	if err != nil {
		return nil, err
	}
	resp, ok := msg.Payload.(ContextResponsePayload)
	if !ok {
		return nil, fmt.Errorf("unexpected reply %s", msg.Type)
	}
	return resp.Matches, nil
}

func (p *Pipeline) roundTrip(ctx context.Context, receiver string, typ bus.MessageType, payload any) (bus.Message, error) {
	trace, err := p.bus.Send(ctx, bus.Message{
		Sender:   "Pipeline",
		Receiver: receiver,
		ReplyTo:  CollectorName,
		Type:     typ,
		Payload:  payload,
	})
	if err != nil {
		return bus.Message{}, err
	}
	return p.collector.Wait(ctx, trace)
}
