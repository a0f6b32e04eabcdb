package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kotae/internal/bus"
)

// Collector receives the final message of each trace and hands it to Wait.
type Collector struct {
	mu      sync.Mutex
	replies map[string]bus.Message
	waiters map[string]chan struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		replies: make(map[string]bus.Message),
		waiters: make(map[string]chan struct{}),
	}
}

// Register subscribes the collector under CollectorName.
func (c *Collector) Register(b *bus.Bus) {
	b.Subscribe(CollectorName, c.Handle)
}

// Handle stores msg under its trace ID.
func (c *Collector) Handle(_ context.Context, msg bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[msg.TraceID] = msg
	if ch, ok := c.waiters[msg.TraceID]; ok {
		close(ch)
		delete(c.waiters, msg.TraceID)
	}
	return nil
}

// Wait blocks until the reply for traceID arrives or ctx is done. The reply is
// removed once returned. An ERROR reply is returned together with its error.
func (c *Collector) Wait(ctx context.Context, traceID string) (bus.Message, error) {
	c.mu.Lock()
	msg, ok := c.replies[traceID]
	if ok {
		delete(c.replies, traceID)
		c.mu.Unlock()
		return msg, replyErr(msg)
	}
	ch, ok := c.waiters[traceID]
	if !ok {
		ch = make(chan struct{})
		c.waiters[traceID] = ch
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return bus.Message{}, fmt.Errorf("waiting for trace %s: %w", traceID, ctx.Err())
	case <-ch:
	}
	c.mu.Lock()
	msg = c.replies[traceID]
	delete(c.replies, traceID)
	c.mu.Unlock()
	return msg, replyErr(msg)
}

func replyErr(msg bus.Message) error {
	if msg.Type != bus.TypeError {
		return nil
	}
	if p, ok := msg.Payload.(ErrorPayload); ok && p.Err != nil {
		return p.Err
	}
	return fmt.Errorf("trace %s failed", msg.TraceID)
}
