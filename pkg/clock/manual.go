package clock

import (
	"context"
	"sync"
	"time"
)

// Manual is a Clock whose tickers only fire when Tick is called.
// Safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*manualTicker]struct{}
	changed chan struct{}
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:     start,
		tickers: make(map[*manualTicker]struct{}),
		changed: make(chan struct{}),
	}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker registers a ticker that fires on every Tick.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	t := &manualTicker{
		clock:  m,
		period: d,
		c:      make(chan time.Time),
		stop:   make(chan struct{}),
	}
	m.mu.Lock()
	m.tickers[t] = struct{}{}
	m.notifyLocked()
	m.mu.Unlock()
	return t
}

// Tick advances the clock by the period of the active tickers and delivers one tick
// to each of them. It blocks until every ticker has either received the tick or been
// stopped, and returns how many ticks were delivered.
func (m *Manual) Tick() int {
	m.mu.Lock()
	active := make([]*manualTicker, 0, len(m.tickers))
	var step time.Duration
	for t := range m.tickers {
		active = append(active, t)
		if t.period > step {
			step = t.period
		}
	}
	if step == 0 {
		step = time.Second
	}
	m.now = m.now.Add(step)
	now := m.now
	m.mu.Unlock()

	delivered := 0
	for _, t := range active {
		select {
		case t.c <- now:
			delivered++
		case <-t.stop:
		}
	}
	return delivered
}

// Active returns the number of running tickers.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

// WaitActive blocks until exactly n tickers are running or ctx is done.
func (m *Manual) WaitActive(ctx context.Context, n int) error {
	for {
		m.mu.Lock()
		if len(m.tickers) == n {
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (m *Manual) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

type manualTicker struct {
	clock    *Manual
	period   time.Duration
	c        chan time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
		t.clock.mu.Lock()
		delete(t.clock.tickers, t)
		t.clock.notifyLocked()
		t.clock.mu.Unlock()
	})
}
