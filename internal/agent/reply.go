package agent

import (
	"context"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/bus"
)

// reply sends the final message of a trace to msg.ReplyTo, if any.
func reply(ctx context.Context, b *bus.Bus, sender string, msg bus.Message, typ bus.MessageType, payload any) error {
	if msg.ReplyTo == "" {
		return nil
	}
	_, err := b.Send(ctx, bus.Message{
		Sender:   sender,
		Receiver: msg.ReplyTo,
		Type:     typ,
		TraceID:  msg.TraceID,
		Payload:  payload,
	})
	return err
}

// replyError reports cause to msg.ReplyTo and returns it so the bus logs it.
func replyError(ctx context.Context, b *bus.Bus, sender string, msg bus.Message, cause error) error {
	if err := reply(ctx, b, sender, msg, bus.TypeError, ErrorPayload{Err: cause}); err != nil {
		return err
	}
	return cause
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
