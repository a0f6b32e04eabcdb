// Package bus is an in-process message bus. Messages are addressed to a
// receiver name and delivered one at a time, in send order, to the handler
// subscribed under that name.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	TypeUpload          MessageType = "UPLOAD"
	TypeDocumentsParsed MessageType = "DOCUMENTS_PARSED"
	TypeIndexBuilt      MessageType = "INDEX_BUILT"
	TypeQuery           MessageType = "QUERY"
	TypeContextResponse MessageType = "CONTEXT_RESPONSE"
	TypeError           MessageType = "ERROR"
)

// ErrClosed is returned by Send after Run has returned.
var ErrClosed = errors.New("bus is closed")

// Message is the envelope exchanged between agents. TraceID ties together
// every message caused by one request.
type Message struct {
	Sender   string
	Receiver string
	// ReplyTo names the receiver for the final response of the trace.
	ReplyTo string
	Type    MessageType
	TraceID string
	Payload any
}

// Handler processes one message. Errors are logged by the bus.
type Handler func(ctx context.Context, msg Message) error

// Bus queues messages without bound so a handler can Send from inside Run.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]Handler
	queue       []Message
	notify      chan struct{}
	closed      bool
	logger      *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for dispatch events.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an idle bus; call Run to start delivery.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]Handler),
		notify:      make(chan struct{}, 1),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewTraceID returns a fresh trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// Subscribe registers h for messages addressed to receiver, replacing any
// previous handler.
func (b *Bus) Subscribe(receiver string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[receiver] = h
}

// Send enqueues msg and returns its trace ID, assigning one if empty.
func (b *Bus) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg.TraceID == "" {
		msg.TraceID = NewTraceID()
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrClosed
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return msg.TraceID, nil
}

// Run delivers messages until ctx is done. Messages for unknown receivers are
// dropped; handler errors are logged and do not stop delivery.
func (b *Bus) Run(ctx context.Context) error {
	defer func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
	}()
	for {
		msg, ok := b.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.notify:
				continue
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.dispatch(ctx, msg)
	}
}

func (b *Bus) next() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Message{}, false
	}
	msg := b.queue[0]
	b.queue[0] = Message{}
	b.queue = b.queue[1:]
	return msg, true
}

func (b *Bus) dispatch(ctx context.Context, msg Message) {
	b.mu.Lock()
	h, ok := b.subscribers[msg.Receiver]
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("no subscriber for receiver; message dropped",
			zap.String("receiver", msg.Receiver),
			zap.String("type", string(msg.Type)),
			zap.String("trace_id", msg.TraceID))
		return
	}
	b.logger.Debug("dispatching message",
		zap.String("sender", msg.Sender),
		zap.String("receiver", msg.Receiver),
		zap.String("type", string(msg.Type)),
		zap.String("trace_id", msg.TraceID))
	if err := h(ctx, msg); err != nil {
		b.logger.Error("handler failed",
			zap.String("receiver", msg.Receiver),
			zap.String("type", string(msg.Type)),
			zap.String("trace_id", msg.TraceID),
			zap.Error(err))
	}
}
