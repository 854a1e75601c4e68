package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/pkg/clock"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/session"
	"github.com/google/uuid"
)

// ErrLimitReached is returned by Create when the registry is full.
var ErrLimitReached = errors.New("session limit reached")

// Factory builds a controller for a new session.
type Factory func(id string, presenter ports.Presenter) (*session.Controller, error)

// entry tracks one running session.
type entry struct {
	ctrl    *session.Controller
	created time.Time
	ended   time.Time // zero while running
}

// Registry keeps the live sessions of a server, addressable by ID.
// Ended sessions stay readable for a retention period and are then reaped.
type Registry struct {
	factory Factory

	mu       sync.RWMutex
	sessions map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc

	newID     func() string
	clock     clock.Clock
	limit     int
	retention time.Duration
	logger    *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces the clock used for timestamps and the reaper.
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		r.clock = clk
	}
}

// WithLimit caps the number of sessions held at once. Zero means no limit.
func WithLimit(n int) Option {
	return func(r *Registry) {
		r.limit = n
	}
}

// WithRetention sets how long ended sessions stay readable.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		r.retention = d
	}
}

// WithIDGenerator replaces the UUID generator (used by tests).
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// New creates a Registry that builds sessions with factory.
func New(factory Factory, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		factory:   factory,
		sessions:  make(map[string]*entry),
		ctx:       ctx,
		cancel:    cancel,
		newID:     uuid.NewString,
		clock:     clock.Real{},
		retention: 10 * time.Minute,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create builds, registers and starts a new session.
// Sessions outlive the caller's request; they stop on Delete or Close.
func (r *Registry) Create(ctx context.Context, presenter ports.Presenter) (*session.Controller, error) {
	return r.CreateWith(ctx, func(string) ports.Presenter { return presenter })
}

// CreateWith is like Create but builds the presenter once the session ID is known.
func (r *Registry) CreateWith(_ context.Context, newPresenter func(id string) ports.Presenter) (*session.Controller, error) {
	id := r.newID()
	presenter := newPresenter(id)

	r.mu.Lock()
	if r.limit > 0 && len(r.sessions) >= r.limit {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrLimitReached, r.limit)
	}
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %s already exists", id)
	}
	ctrl, err := r.factory(id, presenter)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	e := &entry{ctrl: ctrl, created: r.clock.Now()}
	r.sessions[id] = e
	r.mu.Unlock()

	if err := ctrl.Start(r.ctx); err != nil {
		r.remove(id)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	go r.watch(id, e)

	r.logger.Info("session created", "session_id", id)
	return ctrl, nil
}

func (r *Registry) watch(id string, e *entry) {
	<-e.ctrl.Done()
	r.mu.Lock()
	e.ended = r.clock.Now()
	r.mu.Unlock()
	r.logger.Debug("session finished", "session_id", id, "node_id", e.ctrl.Snapshot().NodeID)
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*session.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e.ctrl, nil
}

// List returns snapshots of every registered session, sorted by ID.
func (r *Registry) List() []domain.Snapshot {
	r.mu.RLock()
	out := make([]domain.Snapshot, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.ctrl.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Active returns the number of registered sessions that are still running.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.ended.IsZero() {
			n++
		}
	}
	return n
}

// Delete stops the session and removes it.
func (r *Registry) Delete(id string) error {
	e := r.remove(id)
	if e == nil {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e.ctrl.Stop()
	r.logger.Info("session deleted", "session_id", id)
	return nil
}

func (r *Registry) remove(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return e
}

// Reap removes sessions that ended more than the retention period ago.
// It returns the number of sessions removed.
func (r *Registry) Reap() int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if e.ended.IsZero() || now.Sub(e.ended) < r.retention {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		r.logger.Debug("reaped ended sessions", "count", n)
	}
	return n
}

// Run reaps ended sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			r.Reap()
		}
	}
}

// Close stops every session and empties the registry.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.ctrl.Stop()
	}
}
