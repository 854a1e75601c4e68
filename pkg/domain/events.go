package domain

import "time"

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventTick         EventType = "tick"
	EventCommit       EventType = "commit"
	EventCommitFailed EventType = "commit_failed"
	EventRejected     EventType = "rejected"
	EventIgnored      EventType = "ignored"
	EventEnded        EventType = "ended"
)

// Event is emitted by a session controller for observability.
// Choice is -1 for events that do not refer to a choice.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	NodeID     string    `json:"node_id"`
	NodeKind   Kind      `json:"node_kind,omitempty"`
	Generation uint64    `json:"generation"`
	Remaining  int       `json:"remaining"`
	Choice     int       `json:"choice"`
	Target     string    `json:"target,omitempty"`
	Timeout    bool      `json:"timeout,omitempty"`
	Error      string    `json:"error,omitempty"`
}
