package ports

import (
	"github.com/aretw0/tale/pkg/domain"
)

// Session defines the surface adapters (HTTP, MCP, terminal) use to drive a running playthrough.
type Session interface {
	// ID returns the session identifier.
	ID() string

	// Submit forwards a player's choice. It is safe to call at any time and never blocks;
	// the controller decides whether the choice is accepted, ignored or rejected.
	Submit(index int)

	// Snapshot returns a copy of the session's progress.
	Snapshot() domain.Snapshot

	// View returns the presentation payload of the current node.
	View() domain.NodeView

	// Done is closed when the session ends or is stopped.
	Done() <-chan struct{}
}
