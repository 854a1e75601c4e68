package ports

import (
	"context"

	"github.com/aretw0/tale/pkg/domain"
)

// Transitioner performs the processing step between a committed choice and the
// activation of its target. It runs off the controller's event loop and must
// honor ctx cancellation. A non-nil error keeps the session on the current node.
type Transitioner interface {
	Commit(ctx context.Context, from *domain.Node, index int) error
}

// TransitionFunc adapts a function to the Transitioner interface.
type TransitionFunc func(ctx context.Context, from *domain.Node, index int) error

// Commit calls f.
func (f TransitionFunc) Commit(ctx context.Context, from *domain.Node, index int) error {
	return f(ctx, from, index)
}
