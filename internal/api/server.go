// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/perftrack/internal/api/handler/api"
	"github.com/newthinker/perftrack/internal/api/middleware"
	"github.com/newthinker/perftrack/internal/api/response"
	"github.com/newthinker/perftrack/internal/metrics"
	"github.com/newthinker/perftrack/internal/storage/archive"
	"github.com/newthinker/perftrack/internal/storage/signal"
)

// Server is the read-only HTTP API over the signal store and summary
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string // defaults to /metrics
}

// Dependencies are the components the routes read from
type Dependencies struct {
	Store       signal.Store
	Archive     archive.Storage
	SummaryPath string
	Metrics     *metrics.Registry     // optional
	Stats       func() map[string]any // optional, merged into /api/health
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil || deps.Archive == nil {
		return nil, fmt.Errorf("store and archive are required")
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var h http.Handler = mux
	h = middleware.APIKeyAuth(cfg.APIKey, "/api/health", cfg.MetricsPath)(h)
	h = metrics.LoggingMiddleware(logger)(h)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	signals := handler.NewSignalsHandler(deps.Store)
	performance := handler.NewPerformanceHandler(deps.Archive, deps.SummaryPath)

	route := func(pattern string, h http.HandlerFunc) {
		if deps.Metrics != nil {
			s.mux.Handle(pattern, metrics.HTTPMiddleware(deps.Metrics)(h))
			return
		}
		s.mux.Handle(pattern, h)
	}

	route("GET /api/health", s.handleHealth(deps.Stats))
	route("GET /api/signals", signals.List)
	route("GET /api/signals/{id}", signals.GetByID)
	route("GET /api/performance", performance.Get)

	if deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(stats func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		if stats != nil {
			for k, v := range stats() {
				body[k] = v
			}
		}
		body["status"] = "ok"
		response.JSON(w, http.StatusOK, body)
	}
}
