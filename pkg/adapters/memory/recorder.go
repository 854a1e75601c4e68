package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/tale/pkg/domain"
)

// CallKind identifies which Presenter callback was recorded.
type CallKind string

const (
	CallActivated CallKind = "activated"
	CallTick      CallKind = "tick"
	CallEnded     CallKind = "ended"
	CallError     CallKind = "error"
)

// Call is one recorded Presenter callback.
type Call struct {
	Kind      CallKind
	View      domain.NodeView // CallActivated, CallEnded
	Remaining int             // CallTick
	Err       error           // CallError
}

func (c Call) String() string {
	switch c.Kind {
	case CallActivated, CallEnded:
		return fmt.Sprintf("%s(%s, %d)", c.Kind, c.View.NodeID, c.View.Remaining)
	case CallTick:
		return fmt.Sprintf("tick(%d)", c.Remaining)
	default:
		return fmt.Sprintf("error(%v)", c.Err)
	}
}

// Recorder is a ports.Presenter that keeps every callback in order.
// Calls are also delivered on a buffered channel so tests can wait for them.
// Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	ch    chan Call

	// OnActivated, if set, runs after a node activation is recorded.
	// It runs on the session's event loop, like any presenter callback.
	OnActivated func(view domain.NodeView)
}

// NewRecorder creates a recorder that buffers up to size pending calls
// for Next. Calls beyond the buffer are still kept in Calls.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 256
	}
	return &Recorder{ch: make(chan Call, size)}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	select {
	case r.ch <- c:
	default:
	}
}

// NodeActivated implements ports.Presenter.
func (r *Recorder) NodeActivated(_ context.Context, view domain.NodeView) {
	r.record(Call{Kind: CallActivated, View: view})
	if r.OnActivated != nil {
		r.OnActivated(view)
	}
}

// Tick implements ports.Presenter.
func (r *Recorder) Tick(_ context.Context, remaining int) {
	r.record(Call{Kind: CallTick, Remaining: remaining})
}

// Ended implements ports.Presenter.
func (r *Recorder) Ended(_ context.Context, view domain.NodeView) {
	r.record(Call{Kind: CallEnded, View: view})
}

// Error implements ports.Presenter.
func (r *Recorder) Error(_ context.Context, err error) {
	r.record(Call{Kind: CallError, Err: err})
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind CallKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Next returns the oldest call not yet consumed.
func (r *Recorder) Next(ctx context.Context) (Call, error) {
	select {
	case c := <-r.ch:
		return c, nil
	case <-ctx.Done():
		return Call{}, ctx.Err()
	}
}

// WaitFor consumes calls until one of kind arrives and returns it.
func (r *Recorder) WaitFor(ctx context.Context, kind CallKind) (Call, error) {
	for {
		c, err := r.Next(ctx)
		if err != nil {
			return Call{}, fmt.Errorf("waiting for %s: %w", kind, err)
		}
		if c.Kind == kind {
			return c, nil
		}
	}
}
