package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Message]struct{} // SessionID -> Set of Channels
	buffer      int
	logger      *slog.Logger
}

// NewStreamManager creates a manager whose subscribers buffer up to buffer messages.
func NewStreamManager(buffer int, logger *slog.Logger) *StreamManager {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Message]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a listener for a session. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, sm.buffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- Message]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers returns the number of listeners of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends msg to every listener of a session without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID, "event", msg.Event)
		}
	}
}

func (sm *StreamManager) publish(sessionID, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("SSE: failed to encode message", "event", event, "err", err)
		return
	}
	sm.Broadcast(sessionID, Message{Event: event, Data: data})
}

// Presenter returns a ports.Presenter that forwards a session's callbacks to its listeners.
func (sm *StreamManager) Presenter(sessionID string) ports.Presenter {
	return &streamPresenter{id: sessionID, streams: sm}
}

type streamPresenter struct {
	id      string
	streams *StreamManager
}

func (p *streamPresenter) NodeActivated(_ context.Context, view domain.NodeView) {
	p.streams.publish(p.id, "node", view)
}

func (p *streamPresenter) Tick(_ context.Context, remaining int) {
	p.streams.publish(p.id, "tick", map[string]int{"remaining": remaining})
}

func (p *streamPresenter) Ended(_ context.Context, view domain.NodeView) {
	p.streams.publish(p.id, "ended", view)
}

func (p *streamPresenter) Error(_ context.Context, err error) {
	p.streams.publish(p.id, "error", errorResponse{Error: err.Error()})
}
