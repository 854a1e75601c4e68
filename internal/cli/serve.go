package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tale"
	"github.com/aretw0/tale/internal/config"
	httpAdapter "github.com/aretw0/tale/pkg/adapters/http"
	"github.com/aretw0/tale/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/tale/pkg/adapters/redis"
	"github.com/aretw0/tale/pkg/observability"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// memoryJournalLimit caps the events kept per session when Redis is not configured.
const memoryJournalLimit = 1000

// reapInterval is how often ended sessions are checked against the retention period.
const reapInterval = 30 * time.Second

// Stack is the set of components behind the HTTP server.
type Stack struct {
	Engine  *tale.Engine
	Journal ports.Journal
	Server  *httpAdapter.Server
	// API serves the REST API (and /metrics when no separate metrics address is set).
	API http.Handler
	// Metrics serves the Prometheus registry.
	Metrics http.Handler

	closers []func() error
}

// NewStack wires the engine, its event sinks and the HTTP adapter from cfg.
func NewStack(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	st := &Stack{}

	var journal ports.Journal
	if cfg.Redis.Addr != "" {
		rj, err := redisAdapter.New(cfg.Redis.Addr,
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTTL(cfg.Redis.TTL),
			redisAdapter.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, rj.Close)
		journal = rj
		logger.Info("journal: redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	} else {
		journal = memory.NewStore(memoryJournalLimit)
		logger.Info("journal: memory", "limit", memoryJournalLimit)
	}
	st.Journal = journal

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	st.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	engine, err := NewEngine(cfg, logger, metrics, journal, observability.LogSink(logger))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	st.Engine = engine
	observability.RegisterSessionGauge(reg, func() float64 {
		return float64(engine.Registry().Active())
	})

	opts := []httpAdapter.Option{
		httpAdapter.WithJournal(journal),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithVersion(tale.Version),
	}
	if cfg.MetricsAddr == "" {
		opts = append(opts, httpAdapter.WithMetricsHandler(st.Metrics))
	}
	srv, err := httpAdapter.NewServer(engine.Registry(), engine.Graph(), opts...)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}
	st.Server = srv
	st.API = srv.Handler()
	return st, nil
}

// Close stops every session and releases the journal.
func (st *Stack) Close() error {
	if st.Engine != nil {
		st.Engine.Close()
	}
	var errs []error
	for _, c := range st.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// RunServe serves the API (and metrics) until ctx is cancelled.
func RunServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := NewStack(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	serve := func(name, addr string, h http.Handler) {
		srv := &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("listening", "server", name, "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "server", name, "err", err)
				return srv.Close()
			}
			return nil
		})
	}

	serve("api", cfg.HTTPAddr, st.API)
	if cfg.MetricsAddr != "" {
		serve("metrics", cfg.MetricsAddr, st.Metrics)
	}
	g.Go(func() error {
		if err := st.Engine.Registry().Run(gctx, reapInterval); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
