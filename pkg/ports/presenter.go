package ports

import (
	"context"

	"github.com/aretw0/tale/pkg/domain"
)

// Presenter is the callback contract between the session controller and a frontend.
// Calls are serialized by the controller and made from its event loop, so an
// implementation must not block for long. It may call back into the session
// (e.g. Submit) from inside a callback.
type Presenter interface {
	// NodeActivated presents a node: description, choice labels and the initial countdown.
	NodeActivated(ctx context.Context, view domain.NodeView)

	// Tick reports the new remaining seconds after each countdown step.
	Tick(ctx context.Context, remaining int)

	// Ended reports that a terminal node was reached.
	Ended(ctx context.Context, view domain.NodeView)

	// Error reports a recoverable error. The session stays on the current node.
	Error(ctx context.Context, err error)
}

// NopPresenter ignores every callback.
type NopPresenter struct{}

func (NopPresenter) NodeActivated(context.Context, domain.NodeView) {}
func (NopPresenter) Tick(context.Context, int)                      {}
func (NopPresenter) Ended(context.Context, domain.NodeView)         {}
func (NopPresenter) Error(context.Context, error)                   {}

// Multi fans callbacks out to several presenters, in order.
type Multi []Presenter

func (m Multi) NodeActivated(ctx context.Context, view domain.NodeView) {
	for _, p := range m {
		p.NodeActivated(ctx, view)
	}
}

func (m Multi) Tick(ctx context.Context, remaining int) {
	for _, p := range m {
		p.Tick(ctx, remaining)
	}
}

func (m Multi) Ended(ctx context.Context, view domain.NodeView) {
	for _, p := range m {
		p.Ended(ctx, view)
	}
}

func (m Multi) Error(ctx context.Context, err error) {
	for _, p := range m {
		p.Error(ctx, err)
	}
}
