package ports

import (
	"context"

	"github.com/aretw0/tale/pkg/domain"
)

// EventSink receives lifecycle events emitted by a session.
// Publish is called from the session's event loop and must not block.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, ev domain.Event)

// Publish calls f.
func (f EventSinkFunc) Publish(ctx context.Context, ev domain.Event) {
	f(ctx, ev)
}

// Sinks fans an event out to several sinks.
type Sinks []EventSink

// Publish delivers ev to every sink, in order.
func (s Sinks) Publish(ctx context.Context, ev domain.Event) {
	for _, sink := range s {
		sink.Publish(ctx, ev)
	}
}
