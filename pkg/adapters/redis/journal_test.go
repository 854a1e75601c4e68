package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tale/pkg/adapters/redis"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports/journaltest"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T, opts ...redis.Option) (*redis.Journal, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	j := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = j.Close() })
	return j, mr
}

func TestRedisJournal_Contract(t *testing.T) {
	j, _ := newJournal(t)
	journaltest.Run(t, j)
}

func TestRedisJournal_KeysAndFlush(t *testing.T) {
	j, mr := newJournal(t, redis.WithPrefix("test:"), redis.WithMaxLen(2))
	ctx := context.Background()

	for i := 10; i > 6; i-- {
		j.Publish(ctx, domain.Event{Type: domain.EventTick, SessionID: "abc", NodeID: "entrance", Remaining: i, Choice: -1})
	}
	require.NoError(t, j.Flush(ctx))

	assert.True(t, mr.Exists("test:journal:abc"))
	members, err := mr.ZMembers("test:sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, members)

	events, err := j.Load(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, events, 2, "stream is capped")
	assert.Equal(t, 8, events[0].Remaining)
	assert.Equal(t, 7, events[1].Remaining)
}

func TestRedisJournal_TTL(t *testing.T) {
	j, mr := newJournal(t, redis.WithTTL(time.Second))
	ctx := context.Background()

	j.Publish(ctx, domain.Event{Type: domain.EventEnded, SessionID: "old", NodeID: "victory", Choice: -1})
	require.NoError(t, j.Flush(ctx))

	mr.FastForward(2 * time.Second)

	_, err := j.Load(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisJournal_PublishAfterClose(t *testing.T) {
	j, _ := newJournal(t)
	require.NoError(t, j.Close())

	// Must not panic or block.
	j.Publish(context.Background(), domain.Event{SessionID: "x"})
	assert.ErrorIs(t, j.Flush(context.Background()), redis.ErrClosed)
}
