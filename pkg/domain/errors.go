package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChoice is returned when a choice index is outside the node's choices.
var ErrInvalidChoice = errors.New("invalid choice index")

// ErrTransitionFailed is matched by every TransitionError.
var ErrTransitionFailed = errors.New("transition failed")

// ErrIntegrity is matched by every IntegrityError.
var ErrIntegrity = errors.New("story graph integrity")

// ErrSessionEnded is returned when acting on a session that reached a terminal node.
var ErrSessionEnded = errors.New("session ended")

// ErrSessionNotFound is returned when a session ID cannot be found in the registry.
var ErrSessionNotFound = errors.New("session not found")

// ChoiceError describes a rejected choice.
type ChoiceError struct {
	NodeID string
	Index  int
	Count  int
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("choice %d is out of range for node %s (%d choices)", e.Index, e.NodeID, e.Count)
}

func (e *ChoiceError) Unwrap() error { return ErrInvalidChoice }

// TransitionError wraps a failure of the commit step.
type TransitionError struct {
	NodeID  string
	Index   int
	Timeout bool
	Cause   error
}

func (e *TransitionError) Error() string {
	src := "choice"
	if e.Timeout {
		src = "timeout"
	}
	return fmt.Sprintf("an error occurred while processing %s %d on node %s: %v", src, e.Index, e.NodeID, e.Cause)
}

// Is lets errors.Is match ErrTransitionFailed as well as the cause chain.
func (e *TransitionError) Is(target error) bool {
	return target == ErrTransitionFailed
}

func (e *TransitionError) Unwrap() error { return e.Cause }

// IntegrityError collects every defect found while building a graph.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	if len(e.Problems) == 1 {
		return "story graph integrity: " + e.Problems[0]
	}
	return fmt.Sprintf("story graph integrity: found %d problems:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
