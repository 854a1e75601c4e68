package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
)

// ErrAlreadyStarted is returned by Start when called twice.
var ErrAlreadyStarted = errors.New("session already started")

// commitResult is posted back to the loop when a commit step finishes.
type commitResult struct {
	gen     uint64
	index   int
	timeout bool
	err     error
}

// Controller drives one playthrough of a story graph.
type Controller struct {
	id         string
	graph      *domain.Graph
	presenter  ports.Presenter
	logger     *slog.Logger
	clock      clock.Clock
	countdown  int
	interval   time.Duration
	transition ports.Transitioner
	sinks      ports.Sinks

	// Session state. Written only by the event loop (or by Start before the loop runs).
	mu        sync.RWMutex
	current   *domain.Node
	remaining int
	status    domain.Status
	gen       uint64
	history   []string

	// Owned by the event loop.
	ticker       clock.Ticker
	tickC        <-chan time.Time
	cancelCommit context.CancelFunc

	inboxMu sync.Mutex
	inbox   []int
	wake    chan struct{}

	results chan commitResult

	started  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Controller for graph. The graph is validated first; a defective
// graph is reported as a *domain.IntegrityError and no controller is returned.
func New(graph *domain.Graph, presenter ports.Presenter, opts ...Option) (*Controller, error) {
	if err := domain.Validate(graph); err != nil {
		return nil, err
	}
	if presenter == nil {
		presenter = ports.NopPresenter{}
	}

	c := &Controller{
		graph:      graph,
		presenter:  presenter,
		logger:     logging.NewNop(),
		clock:      clock.Real{},
		countdown:  domain.DefaultCountdown,
		interval:   DefaultTickInterval,
		transition: Delay(DefaultTransitionDelay),
		status:     domain.StatusIdle,
		wake:       make(chan struct{}, 1),
		results:    make(chan commitResult),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", c.id)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Graph returns the story graph the session runs on.
func (c *Controller) Graph() *domain.Graph { return c.graph }

// Start activates the entry node and launches the event loop.
// If the entry node is terminal the session ends before Start returns.
// Cancelling ctx stops the session.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("session started", "entry", c.graph.Entry().ID)
	c.activate(ctx, c.graph.Entry(), false)
	if c.Status() == domain.StatusEnded {
		c.shutdown()
		return nil
	}

	go c.loop(ctx)
	return nil
}

// Stop cancels the session and waits for the event loop to exit.
func (c *Controller) Stop() {
	if !c.started.Load() {
		c.doneOnce.Do(func() { close(c.done) })
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

// Submit queues a player's choice. It never blocks and is safe from any goroutine,
// including from inside a Presenter callback. An out-of-range index is reported
// through Presenter.Error and does not restart the countdown.
func (c *Controller) Submit(index int) {
	select {
	case <-c.done:
		c.logger.Debug("choice ignored", "reason", domain.ErrSessionEnded, "choice", index)
		return
	default:
	}

	c.inboxMu.Lock()
	c.inbox = append(c.inbox, index)
	c.inboxMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the session's progress.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := domain.Snapshot{
		SessionID:  c.id,
		Status:     c.status,
		Remaining:  c.remaining,
		Generation: c.gen,
		History:    c.history,
	}
	if c.current != nil {
		s.NodeID = c.current.ID
	}
	return s.Clone()
}

// View returns the presentation payload of the current node.
func (c *Controller) View() domain.NodeView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return domain.NodeView{}
	}
	return c.current.View(c.remaining)
}

// Current returns the active node, or nil before Start.
func (c *Controller) Current() *domain.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Status returns the session status.
func (c *Controller) Status() domain.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Done is closed when the session ends or is stopped.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Wait blocks until the session is done or ctx is cancelled.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop(ctx context.Context) {
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("session stopped", "err", ctx.Err())
			return
		case <-c.tickC:
			c.tick(ctx)
		case <-c.wake:
			c.drain(ctx)
		case res := <-c.results:
			c.complete(ctx, res)
		}

		if c.Status() == domain.StatusEnded {
			return
		}
	}
}

func (c *Controller) shutdown() {
	c.stopTicker()
	if c.cancelCommit != nil {
		c.cancelCommit()
		c.cancelCommit = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) drain(ctx context.Context) {
	c.inboxMu.Lock()
	queued := c.inbox
	c.inbox = nil
	c.inboxMu.Unlock()

	for _, index := range queued {
		c.choose(ctx, index)
	}
}

// activate makes node current and starts its countdown. rearm restarts the
// countdown on the same node without recording a new visit.
func (c *Controller) activate(ctx context.Context, node *domain.Node, rearm bool) {
	c.stopTicker()

	c.mu.Lock()
	c.gen++
	c.current = node
	if node.Terminal() {
		c.remaining = 0
		c.status = domain.StatusEnded
	} else {
		c.remaining = c.countdown
		c.status = domain.StatusIdle
	}
	if !rearm {
		c.history = append(c.history, node.ID)
	}
	view := node.View(c.remaining)
	c.mu.Unlock()

	if !view.Terminal {
		c.ticker = c.clock.NewTicker(c.interval)
		c.tickC = c.ticker.C()
	}

	c.logger.Debug("node activated", "node_id", node.ID, "kind", node.Kind, "rearm", rearm)
	c.emit(ctx, domain.EventNodeEnter, nil)
	c.presenter.NodeActivated(ctx, view)

	if view.Terminal {
		c.logger.Info("session ended", "node_id", node.ID)
		c.emit(ctx, domain.EventEnded, nil)
		c.presenter.Ended(ctx, view)
	}
}

func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	if c.status != domain.StatusIdle || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	remaining := c.remaining
	c.mu.Unlock()

	c.emit(ctx, domain.EventTick, nil)
	c.presenter.Tick(ctx, remaining)

	if remaining == 0 {
		c.logger.Debug("countdown expired", "node_id", c.Current().ID)
		c.commit(ctx, domain.TimeoutChoice, true)
	}
}

// choose commits a valid index. Rejections leave the node, remaining time and
// ticker untouched.
func (c *Controller) choose(ctx context.Context, index int) {
	status := c.Status()
	if status != domain.StatusIdle {
		c.logger.Debug("choice ignored", "status", status, "choice", index)
		c.emit(ctx, domain.EventIgnored, func(ev *domain.Event) {
			ev.Choice = index
		})
		return
	}

	node := c.Current()
	if index < 0 || index >= len(node.Choices) {
		err := &domain.ChoiceError{NodeID: node.ID, Index: index, Count: len(node.Choices)}
		c.logger.Warn("choice rejected", "node_id", node.ID, "choice", index, "err", err)
		c.emit(ctx, domain.EventRejected, func(ev *domain.Event) {
			ev.Choice = index
			ev.Error = err.Error()
		})
		c.presenter.Error(ctx, err)
		return
	}

	c.commit(ctx, index, false)
}

// commit locks in a choice and runs the transition step off the loop.
func (c *Controller) commit(ctx context.Context, index int, timeout bool) {
	c.stopTicker()

	c.mu.Lock()
	c.status = domain.StatusTransitioning
	node := c.current
	gen := c.gen
	c.mu.Unlock()

	target := node.Choices[index].Target
	c.logger.Debug("choice committed", "node_id", node.ID, "choice", index, "target", target.ID, "timeout", timeout)
	c.emit(ctx, domain.EventCommit, func(ev *domain.Event) {
		ev.Choice = index
		ev.Target = target.ID
		ev.Timeout = timeout
	})

	commitCtx, cancel := context.WithCancel(ctx)
	c.cancelCommit = cancel
	go func() {
		err := c.transition.Commit(commitCtx, node, index)
		select {
		case c.results <- commitResult{gen: gen, index: index, timeout: timeout, err: err}:
		case <-c.done:
		}
	}()
}

func (c *Controller) complete(ctx context.Context, res commitResult) {
	c.mu.RLock()
	stale := res.gen != c.gen || c.status != domain.StatusTransitioning
	node := c.current
	c.mu.RUnlock()

	if stale || ctx.Err() != nil {
		c.logger.Debug("stale commit result dropped", "generation", res.gen)
		return
	}
	if c.cancelCommit != nil {
		c.cancelCommit()
		c.cancelCommit = nil
	}

	if res.err != nil {
		err := &domain.TransitionError{NodeID: node.ID, Index: res.index, Timeout: res.timeout, Cause: res.err}
		c.logger.Error("transition failed", "node_id", node.ID, "choice", res.index, "err", res.err)
		c.emit(ctx, domain.EventCommitFailed, func(ev *domain.Event) {
			ev.Choice = res.index
			ev.Timeout = res.timeout
			ev.Error = err.Error()
		})
		c.presenter.Error(ctx, err)
		c.activate(ctx, node, true)
		return
	}

	c.activate(ctx, node.Choices[res.index].Target, false)
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.tickC = nil
}

func (c *Controller) emit(ctx context.Context, typ domain.EventType, fill func(*domain.Event)) {
	if len(c.sinks) == 0 {
		return
	}

	c.mu.RLock()
	ev := domain.Event{
		Timestamp:  c.clock.Now(),
		Type:       typ,
		SessionID:  c.id,
		Generation: c.gen,
		Remaining:  c.remaining,
		Choice:     -1,
	}
	if c.current != nil {
		ev.NodeID = c.current.ID
		ev.NodeKind = c.current.Kind
	}
	c.mu.RUnlock()

	if fill != nil {
		fill(&ev)
	}
	c.sinks.Publish(ctx, ev)
}

// String implements fmt.Stringer for log output.
func (c *Controller) String() string {
	s := c.Snapshot()
	return fmt.Sprintf("session %s at %s (%s, %ds)", s.SessionID, s.NodeID, s.Status, s.Remaining)
}
