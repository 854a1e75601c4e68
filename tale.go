package tale

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/registry"
	"github.com/aretw0/tale/pkg/session"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the Tale library.
// It holds one validated story graph and the settings every session of it shares,
// and owns the registry servers use to address running sessions.
type Engine struct {
	graph        *domain.Graph
	logger       *slog.Logger
	clock        clock.Clock
	countdown    int
	interval     time.Duration
	delay        time.Duration
	transitioner ports.Transitioner
	failEvery    int
	sinks        []ports.EventSink
	registryOpts []registry.Option

	registry *registry.Registry
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the wall clock (tests use clock.Manual).
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithCountdown sets the seconds a player has to decide on each node.
func WithCountdown(seconds int) Option {
	return func(e *Engine) {
		e.countdown = seconds
	}
}

// WithTickInterval sets the duration of one countdown step.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithTransitionDelay sets the simulated processing time between a commit and the next node.
func WithTransitionDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithTransitioner replaces the commit step. It takes precedence over WithTransitionDelay.
func WithTransitioner(t ports.Transitioner) Option {
	return func(e *Engine) {
		e.transitioner = t
	}
}

// WithFailEvery makes every n-th commit fail, to exercise the recovery path.
func WithFailEvery(n int) Option {
	return func(e *Engine) {
		e.failEvery = n
	}
}

// WithEventSink adds observers (metrics, journals, logs) to every session.
func WithEventSink(sinks ...ports.EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithRegistryOptions configures the session registry (limits, retention).
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(e *Engine) {
		e.registryOpts = append(e.registryOpts, opts...)
	}
}

// New validates graph and initializes an Engine for it.
func New(graph *domain.Graph, opts ...Option) (*Engine, error) {
	if err := domain.Validate(graph); err != nil {
		return nil, err
	}

	e := &Engine{
		graph:     graph,
		clock:     clock.Real{},
		countdown: domain.DefaultCountdown,
		interval:  session.DefaultTickInterval,
		delay:     session.DefaultTransitionDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.countdown <= 0 {
		return nil, fmt.Errorf("countdown must be positive, got %d", e.countdown)
	}

	regOpts := append([]registry.Option{
		registry.WithLogger(e.logger),
		registry.WithClock(e.clock),
	}, e.registryOpts...)
	e.registry = registry.New(e.factory, regOpts...)
	return e, nil
}

// Graph returns the story graph.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// Registry returns the registry of server-managed sessions.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// SessionOptions returns the controller options every session of this engine uses.
func (e *Engine) SessionOptions(id string) []session.Option {
	t := e.transitioner
	if t == nil {
		t = session.Delay(e.delay)
	}
	if e.failEvery > 0 {
		t = session.Flaky(t, e.failEvery)
	}

	return []session.Option{
		session.WithID(id),
		session.WithLogger(e.logger),
		session.WithClock(e.clock),
		session.WithCountdown(e.countdown),
		session.WithTickInterval(e.interval),
		session.WithTransitioner(t),
		session.WithEventSink(e.sinks...),
	}
}

func (e *Engine) factory(id string, presenter ports.Presenter) (*session.Controller, error) {
	return session.New(e.graph, presenter, e.SessionOptions(id)...)
}

// NewSession creates a standalone session with a fresh ID. It is not registered;
// the caller starts and stops it. Extra options are applied after the engine's.
func (e *Engine) NewSession(presenter ports.Presenter, opts ...session.Option) (*session.Controller, error) {
	all := append(e.SessionOptions(uuid.NewString()), opts...)
	return session.New(e.graph, presenter, all...)
}

// Close stops every registered session.
func (e *Engine) Close() {
	e.registry.Close()
}
