package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	NodeID    *string `json:"node_id,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Remaining *int    `json:"remaining,omitempty"`

	// History carries only the entries appended since the old snapshot.
	History *HistoryDelta `json:"history,omitempty"`
}

// HistoryDelta represents changes to the visit history.
type HistoryDelta struct {
	Appended []string `json:"appended"`
}

// Empty reports whether the diff carries no change.
func (d *SnapshotDiff) Empty() bool {
	return d.NodeID == nil && d.Status == nil && d.Remaining == nil && d.History == nil
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: newSnap.SessionID}

	if oldSnap == nil || oldSnap.NodeID != newSnap.NodeID {
		id := newSnap.NodeID
		diff.NodeID = &id
	}
	if oldSnap == nil || oldSnap.Status != newSnap.Status {
		st := newSnap.Status
		diff.Status = &st
	}
	if oldSnap == nil || oldSnap.Remaining != newSnap.Remaining {
		rem := newSnap.Remaining
		diff.Remaining = &rem
	}

	oldLen := 0
	if oldSnap != nil {
		oldLen = len(oldSnap.History)
	}
	if len(newSnap.History) > oldLen {
		diff.History = &HistoryDelta{
			Appended: append([]string(nil), newSnap.History[oldLen:]...),
		}
	}

	if diff.Empty() {
		return nil
	}
	return diff
}
