package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/tale/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an EventSink that records session activity as Prometheus metrics.
// Safe for concurrent use by many sessions.
type Metrics struct {
	NodeVisits     *prometheus.CounterVec
	Commits        *prometheus.CounterVec
	CommitFailures *prometheus.CounterVec
	Rejected       prometheus.Counter
	Ignored        prometheus.Counter
	Endings        *prometheus.CounterVec
	Ticks          prometheus.Counter
	DecisionTime   *prometheus.HistogramVec

	mu      sync.Mutex
	entered map[string]time.Time // session -> last node_enter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tale_node_visits_total",
				Help: "Total number of node activations",
			},
			[]string{"node_id", "kind"},
		),
		Commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tale_commits_total",
				Help: "Total number of committed choices, by source (choice or timeout)",
			},
			[]string{"source"},
		),
		CommitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tale_commit_failures_total",
				Help: "Total number of failed transitions",
			},
			[]string{"node_id"},
		),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tale_rejected_choices_total",
			Help: "Total number of out-of-range choices",
		}),
		Ignored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tale_ignored_choices_total",
			Help: "Total number of choices submitted while a transition was in progress",
		}),
		Endings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tale_endings_total",
				Help: "Total number of sessions that reached each terminal node",
			},
			[]string{"node_id"},
		),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tale_ticks_total",
			Help: "Total number of countdown ticks",
		}),
		DecisionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tale_decision_seconds",
				Help:    "Time between a node activation and its commit",
				Buckets: []float64{0.5, 1, 2, 3, 5, 7, 10, 15},
			},
			[]string{"source"},
		),
		entered: make(map[string]time.Time),
	}
	reg.MustRegister(m.NodeVisits, m.Commits, m.CommitFailures, m.Rejected, m.Ignored, m.Endings, m.Ticks, m.DecisionTime)
	return m
}

// RegisterSessionGauge exposes the number of running sessions reported by fn.
func RegisterSessionGauge(reg prometheus.Registerer, fn func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tale_active_sessions",
		Help: "Number of sessions currently running",
	}, fn))
}

// Publish implements ports.EventSink.
func (m *Metrics) Publish(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventNodeEnter:
		m.NodeVisits.WithLabelValues(ev.NodeID, string(ev.NodeKind)).Inc()
		m.mu.Lock()
		m.entered[ev.SessionID] = ev.Timestamp
		m.mu.Unlock()
	case domain.EventTick:
		m.Ticks.Inc()
	case domain.EventCommit:
		source := "choice"
		if ev.Timeout {
			source = "timeout"
		}
		m.Commits.WithLabelValues(source).Inc()
		m.mu.Lock()
		start, ok := m.entered[ev.SessionID]
		m.mu.Unlock()
		if ok {
			m.DecisionTime.WithLabelValues(source).Observe(ev.Timestamp.Sub(start).Seconds())
		}
	case domain.EventCommitFailed:
		m.CommitFailures.WithLabelValues(ev.NodeID).Inc()
	case domain.EventRejected:
		m.Rejected.Inc()
	case domain.EventIgnored:
		m.Ignored.Inc()
	case domain.EventEnded:
		m.Endings.WithLabelValues(ev.NodeID).Inc()
		m.mu.Lock()
		delete(m.entered, ev.SessionID)
		m.mu.Unlock()
	}
}
