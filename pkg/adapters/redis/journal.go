package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// ErrClosed is returned by Flush once the journal is closed.
var ErrClosed = errors.New("journal closed")

type item struct {
	ev      *domain.Event
	flushed chan struct{}
}

// Journal implements ports.Journal on Redis Streams.
// Each session gets its own stream; a sorted set indexes sessions by last activity.
// Publish never blocks the session: events are queued and written by a background
// worker, and dropped (with a warning) when the queue is full.
type Journal struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	maxLen int64
	buffer int
	logger *slog.Logger

	queue chan item
	stop  chan struct{}
	done  chan struct{}
}

// Option configures the Journal.
type Option func(*Journal)

// WithPrefix sets the key prefix (default "tale:").
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// WithTTL expires a session's stream after d without new events.
func WithTTL(d time.Duration) Option {
	return func(j *Journal) {
		j.ttl = d
	}
}

// WithMaxLen caps each stream's length.
func WithMaxLen(n int64) Option {
	return func(j *Journal) {
		j.maxLen = n
	}
}

// WithBuffer sets the size of the write queue.
func WithBuffer(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.buffer = n
		}
	}
}

// WithLogger configures the logger used to report write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// New connects to addr and returns a running Journal.
func New(addr string, opts ...Option) (*Journal, error) {
	client := backend.NewClient(&backend.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewFromClient(client, opts...), nil
}

// NewFromClient returns a running Journal using an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client: client,
		prefix: "tale:",
		buffer: 1024,
		logger: logging.NewNop(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.queue = make(chan item, j.buffer)
	go j.run()
	return j
}

func (j *Journal) streamKey(sessionID string) string {
	return j.prefix + "journal:" + sessionID
}

func (j *Journal) indexKey() string {
	return j.prefix + "sessions"
}

// Publish queues ev for writing.
func (j *Journal) Publish(_ context.Context, ev domain.Event) {
	select {
	case <-j.stop:
		return
	default:
	}

	select {
	case j.queue <- item{ev: &ev}:
	default:
		j.logger.Warn("journal queue full, event dropped", "session_id", ev.SessionID, "type", ev.Type)
	}
}

// Flush blocks until every event queued before the call has been written.
func (j *Journal) Flush(ctx context.Context) error {
	select {
	case <-j.stop:
		return ErrClosed
	default:
	}

	marker := item{flushed: make(chan struct{})}
	select {
	case j.queue <- marker:
	case <-j.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, stops the worker and closes the client.
func (j *Journal) Close() error {
	select {
	case <-j.stop:
	default:
		close(j.stop)
	}
	<-j.done
	return j.client.Close()
}

func (j *Journal) run() {
	defer close(j.done)
	for {
		select {
		case it := <-j.queue:
			j.handle(it)
		case <-j.stop:
			for {
				select {
				case it := <-j.queue:
					j.handle(it)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) handle(it item) {
	if it.flushed != nil {
		close(it.flushed)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.write(ctx, it.ev); err != nil {
		j.logger.Error("failed to write journal event", "session_id", it.ev.SessionID, "type", it.ev.Type, "err", err)
	}
}

func (j *Journal) write(ctx context.Context, ev *domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := j.streamKey(ev.SessionID)
	pipe := j.client.TxPipeline()
	pipe.XAdd(ctx, &backend.XAddArgs{
		Stream: key,
		MaxLen: j.maxLen,
		Values: map[string]any{
			"type":  string(ev.Type),
			"event": payload,
		},
	})
	pipe.ZAdd(ctx, j.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: ev.SessionID,
	})
	if j.ttl > 0 {
		pipe.Expire(ctx, key, j.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Load reads a session's stream.
func (j *Journal) Load(ctx context.Context, sessionID string) ([]domain.Event, error) {
	msgs, err := j.client.XRange(ctx, j.streamKey(sessionID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(msgs) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	events := make([]domain.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			return nil, fmt.Errorf("journal entry %s has no payload", msg.ID)
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry %s: %w", msg.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Delete removes a session's stream and its index entry.
func (j *Journal) Delete(ctx context.Context, sessionID string) error {
	pipe := j.client.TxPipeline()
	pipe.Del(ctx, j.streamKey(sessionID))
	pipe.ZRem(ctx, j.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete journal: %w", err)
	}
	return nil
}

// List returns the sessions with a journal. Index entries older than the TTL are
// removed lazily.
func (j *Journal) List(ctx context.Context) ([]string, error) {
	if j.ttl > 0 {
		cutoff := time.Now().Add(-j.ttl).Unix()
		if err := j.client.ZRemRangeByScore(ctx, j.indexKey(), "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune journal index: %w", err)
		}
	}
	ids, err := j.client.ZRange(ctx, j.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	return ids, nil
}
