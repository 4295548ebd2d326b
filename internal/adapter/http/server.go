package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	"github.com/couchcryptid/geocode-orchestrator/internal/queue"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the geocoder surface exposed over HTTP.
type Service interface {
	domain.Geocoder
	sharedobs.ReadinessChecker
	Reset()
	Stats() map[string]queue.Stats
}

// Server exposes the geocode API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer     *http.Server
	service        Service
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewServer creates an HTTP server. Every geocode request is bounded by
// requestTimeout; a lookup still queued or in flight when it expires is
// cancelled.
func NewServer(addr string, service Service, requestTimeout time.Duration, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      requestTimeout + 10*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		service:        service,
		requestTimeout: requestTimeout,
		logger:         logger,
	}

	r.Use(recoverer(logger))
	r.Use(requestLogger(logger))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(service))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/geocode", s.handleGeocode)
		r.Get("/geocode/boundary", s.handleBoundary)
		r.Get("/geocode/point", s.handlePoint)
		r.Get("/queues", s.handleQueues)
		r.Post("/reset", s.handleReset)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
