// Package journaltest provides a contract suite that every ports.Journal must pass.
package journaltest

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises j. Journals may persist asynchronously, so reads are polled.
func Run(t *testing.T, j ports.Journal) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Load Missing", func(t *testing.T) {
		_, err := j.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Publish And Load In Order", func(t *testing.T) {
		events := []domain.Event{
			{Timestamp: base, Type: domain.EventNodeEnter, SessionID: "s1", NodeID: "entrance", NodeKind: domain.KindDialogue, Generation: 1, Remaining: 10, Choice: -1},
			{Timestamp: base.Add(time.Second), Type: domain.EventTick, SessionID: "s1", NodeID: "entrance", Generation: 1, Remaining: 9, Choice: -1},
			{Timestamp: base.Add(2 * time.Second), Type: domain.EventCommit, SessionID: "s1", NodeID: "entrance", Generation: 1, Remaining: 9, Choice: 0, Target: "cave_interior"},
		}
		for _, ev := range events {
			j.Publish(ctx, ev)
		}

		var got []domain.Event
		require.Eventually(t, func() bool {
			loaded, err := j.Load(ctx, "s1")
			if err != nil || len(loaded) < len(events) {
				return false
			}
			got = loaded
			return true
		}, 2*time.Second, 10*time.Millisecond)

		require.Len(t, got, len(events))
		for i := range events {
			assert.Equal(t, events[i].Type, got[i].Type)
			assert.Equal(t, events[i].NodeID, got[i].NodeID)
			assert.Equal(t, events[i].Choice, got[i].Choice)
			assert.Equal(t, events[i].Target, got[i].Target)
			assert.Equal(t, events[i].Remaining, got[i].Remaining)
			assert.True(t, events[i].Timestamp.Equal(got[i].Timestamp), "timestamp %d", i)
		}
	})

	t.Run("List And Delete", func(t *testing.T) {
		j.Publish(ctx, domain.Event{Timestamp: base, Type: domain.EventEnded, SessionID: "s2", NodeID: "victory", Choice: -1})

		require.Eventually(t, func() bool {
			ids, err := j.List(ctx)
			return err == nil && contains(ids, "s2")
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, j.Delete(ctx, "s2"))
		_, err := j.Load(ctx, "s2")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		ids, err := j.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, "s2")
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
