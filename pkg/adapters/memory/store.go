package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tale/pkg/domain"
)

// Store implements ports.Journal in memory.
// Safe for concurrent use.
type Store struct {
	data  map[string][]domain.Event
	limit int
	mu    sync.RWMutex
}

// NewStore creates a new in-memory journal. limit caps the events kept per
// session (oldest are dropped first); zero keeps everything.
func NewStore(limit int) *Store {
	return &Store{
		data:  make(map[string][]domain.Event),
		limit: limit,
	}
}

// Publish appends the event to its session's log.
func (s *Store) Publish(_ context.Context, ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append(s.data[ev.SessionID], ev)
	if s.limit > 0 && len(events) > s.limit {
		events = append([]domain.Event(nil), events[len(events)-s.limit:]...)
	}
	s.data[ev.SessionID] = events
}

// Load returns a copy of the session's events so callers can't mutate the log.
func (s *Store) Load(_ context.Context, sessionID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.Event(nil), events...), nil
}

// Delete removes the session's events.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the sessions with recorded events.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
