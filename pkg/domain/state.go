package domain

// Status defines the current mode of a session.
type Status string

const (
	StatusIdle          Status = "idle"          // Waiting for a decision, countdown running
	StatusTransitioning Status = "transitioning" // Choice committed, delay in progress
	StatusEnded         Status = "ended"         // Terminal node reached
)

// DefaultCountdown is the number of seconds a player has to decide.
const DefaultCountdown = 10

// TimeoutChoice is the choice index committed when the countdown expires.
const TimeoutChoice = 0

// Snapshot is a read-only copy of a session's progress.
type Snapshot struct {
	SessionID  string   `json:"session_id"`
	NodeID     string   `json:"node_id"`
	Status     Status   `json:"status"`
	Remaining  int      `json:"remaining"`
	Generation uint64   `json:"generation"`
	History    []string `json:"history"`
}

// Clone returns a deep copy safe for mutation.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.History = append([]string(nil), s.History...)
	return out
}
