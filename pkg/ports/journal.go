package ports

import (
	"context"

	"github.com/aretw0/tale/pkg/domain"
)

// Journal is an EventSink that keeps the events it receives, grouped by session.
// It is an audit trail, not a resumable state: sessions are never restored from it.
type Journal interface {
	EventSink

	// Load returns the events recorded for a session, oldest first.
	// Returns domain.ErrSessionNotFound if nothing was recorded.
	Load(ctx context.Context, sessionID string) ([]domain.Event, error)

	// Delete removes the events of a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the sessions with recorded events.
	List(ctx context.Context) ([]string, error)
}
