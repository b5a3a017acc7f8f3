package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the flowgraph engine the HTTP adapter drives.
type Engine interface {
	CreateGraph(ctx context.Context, spec domain.GraphSpec) (*domain.GraphDefinition, error)
	GetGraph(ctx context.Context, graphID string) (*domain.GraphDefinition, error)
	ListGraphs(ctx context.Context) ([]*domain.GraphDefinition, error)
	RunGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error)
	ExecuteGraph(ctx context.Context, graphID string, initial domain.State, maxIterations int) (*domain.Run, error)
	GetRunState(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context) ([]*domain.Run, error)
	Tools() []string
}

// Server holds the handler dependencies.
type Server struct {
	Engine   Engine
	Streams  *StreamManager
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Version  string
}

// Option configures the Server.
type Option func(*Server)

// WithStreams enables run event streaming. The manager's Hooks must be registered on the
// engine for events to flow.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithGatherer sets the registry served on /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithVersion sets the application version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:   engine,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logging.NewNop(),
		Version:  "dev",
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(server.logRequests)
	r.Use(enableCORS)

	r.Post("/graph/create", server.CreateGraph)
	r.Post("/graph/run", server.RunGraph)
	r.Get("/graph/state/{run_id}", server.GetRunState)
	r.Get("/graph/state/{run_id}/events", server.StreamRun)

	r.Get("/graphs", server.ListGraphs)
	r.Get("/graphs/{graph_id}", server.GetGraph)
	r.Get("/runs", server.ListRuns)
	r.Get("/tools", server.ListTools)
	r.Post("/workflows/code-review/create", server.CreateCodeReview)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
