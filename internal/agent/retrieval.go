package agent

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/bus"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

// RetrievalAgent builds the engine from DOCUMENTS_PARSED and answers QUERY
// messages with CONTEXT_RESPONSE. Results and failures go to msg.ReplyTo.
type RetrievalAgent struct {
	bus    *bus.Bus
	engine *retrieval.Engine
	logger *zap.Logger
}

// NewRetrievalAgent creates the agent; call Register to subscribe it.
func NewRetrievalAgent(b *bus.Bus, engine *retrieval.Engine, logger *zap.Logger) *RetrievalAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalAgent{bus: b, engine: engine, logger: logger}
}

// Register subscribes the agent under RetrievalAgentName.
func (a *RetrievalAgent) Register() {
	a.bus.Subscribe(RetrievalAgentName, a.Handle)
}

// Handle processes DOCUMENTS_PARSED and QUERY messages.
func (a *RetrievalAgent) Handle(ctx context.Context, msg bus.Message) error {
	switch msg.Type {
	case bus.TypeDocumentsParsed:
		payload, ok := msg.Payload.(DocumentsParsedPayload)
		if !ok {
			return replyError(ctx, a.bus, RetrievalAgentName, msg, fmt.Errorf("retrieval agent: bad payload %T", msg.Payload))
		}
		if err := a.engine.BuildIndex(ctx, payload.Documents); err != nil {
			return replyError(ctx, a.bus, RetrievalAgentName, msg, err)
		}
		return reply(ctx, a.bus, RetrievalAgentName, msg, bus.TypeIndexBuilt,
			IndexBuiltPayload{Stats: a.engine.Stats(), Skipped: payload.Skipped})

	case bus.TypeQuery:
		payload, ok := msg.Payload.(QueryPayload)
		if !ok {
			return replyError(ctx, a.bus, RetrievalAgentName, msg, fmt.Errorf("retrieval agent: bad payload %T", msg.Payload))
		}
		matches, err := a.engine.Query(ctx, payload.Question, payload.Options)
		if err != nil {
			return replyError(ctx, a.bus, RetrievalAgentName, msg, err)
		}
		a.logger.Debug("query answered", zap.String("trace_id", msg.TraceID), zap.Int("matches", len(matches)))
		return reply(ctx, a.bus, RetrievalAgentName, msg, bus.TypeContextResponse,
			ContextResponsePayload{Question: payload.Question, Matches: matches})

	default:
		return fmt.Errorf("retrieval agent: unexpected message type %s", msg.Type)
	}
}
