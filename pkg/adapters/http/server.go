package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/tale/api"
	"github.com/aretw0/tale/internal/logging"
	"github.com/aretw0/tale/internal/presentation/graph"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/registry"
	"github.com/aretw0/tale/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a session registry over HTTP.
type Server struct {
	Registry *registry.Registry
	Graph    *domain.Graph
	Streams  *StreamManager
	Journal  ports.Journal

	spec    *openapi3.T
	version string
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithJournal serves recorded events at /sessions/{id}/journal.
func WithJournal(j ports.Journal) Option {
	return func(s *Server) {
		s.Journal = j
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a Server. Sessions must be created through the server
// (POST /sessions) for their events to reach SSE subscribers.
func NewServer(reg *registry.Registry, g *domain.Graph, opts ...Option) (*Server, error) {
	s := &Server{
		Registry: reg,
		Graph:    g,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(32, s.logger)

	spec, err := api.Load(context.Background())
	if err != nil {
		return nil, err
	}
	s.spec = spec
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/graph", s.getGraph)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/choices", s.submitChoice)
			r.Get("/events", s.subscribeEvents)
			r.Get("/journal", s.getJournal)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Tale API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "tale-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(api.Spec)
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "mermaid" {
		var overlay *graph.Overlay
		if id := r.URL.Query().Get("session_id"); id != "" {
			ctrl, err := s.Registry.Get(id)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			overlay = graph.OverlayFor(ctrl.Snapshot())
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graph.GenerateMermaid(s.Graph, overlay)))
		return
	}

	writeJSON(w, http.StatusOK, nodesFromDomain(s.Graph))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.List())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.Registry.CreateWith(r.Context(), s.Streams.Presenter)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrLimitReached) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("createSession failed", "err", err)
		writeError(w, status, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+ctrl.ID())
	writeJSON(w, http.StatusCreated, sessionFrom(ctrl))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := s.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionFrom(ctrl))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submitChoice(w http.ResponseWriter, r *http.Request) {
	var body choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Choice == nil {
		writeError(w, http.StatusBadRequest, errors.New(`invalid request body: expected {"choice": <index>}`))
		return
	}

	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if ctrl.Status() == domain.StatusEnded {
		writeError(w, http.StatusConflict, domain.ErrSessionEnded)
		return
	}

	index := *body.Choice
	view := ctrl.View()
	// The session is the authority and reports the rejection to its listeners;
	// the pre-check only gives this caller an immediate answer.
	ctrl.Submit(index)
	if index < 0 || index >= len(view.Choices) {
		writeError(w, http.StatusUnprocessableEntity, &domain.ChoiceError{NodeID: view.NodeID, Index: index, Count: len(view.Choices)})
		return
	}

	writeJSON(w, http.StatusAccepted, sessionFrom(ctrl))
}

func (s *Server) getJournal(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	events, err := s.Journal.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// subscribeEvents streams a session's presenter callbacks as server-sent events,
// followed by a "diff" event whenever the session snapshot changed.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	var watch map[string]bool
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = make(map[string]bool)
		for _, name := range strings.Split(raw, ",") {
			watch[strings.TrimSpace(name)] = true
		}
	}

	ch, cancel := s.Streams.Subscribe(ctrl.ID())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(msg Message) {
		if watch != nil && !watch[msg.Event] {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
		flusher.Flush()
	}

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	last := ctrl.Snapshot()
	if data, err := json.Marshal(ctrl.View()); err == nil {
		send(Message{Event: "node", Data: data})
	}

	forward := func(msg Message) {
		send(msg)
		snap := ctrl.Snapshot()
		if diff := domain.Diff(&last, &snap); diff != nil {
			if data, err := json.Marshal(diff); err == nil {
				send(Message{Event: "diff", Data: data})
			}
		}
		last = snap
	}

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", ctrl.ID())
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", ctrl.ID())
			return
		case <-ctrl.Done():
			// Deliver what the session broadcast before it finished.
			for {
				select {
				case msg := <-ch:
					forward(msg)
				default:
					return
				}
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			forward(msg)
		}
	}
}
