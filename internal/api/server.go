// Package api provides the HTTP REST API for run submission and
// observability reads. The dashboard polls these endpoints plus the SSE
// stream; the worker itself never depends on this package.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/events"
)

// Server exposes the store and event bus over HTTP.
type Server struct {
	router     chi.Router
	store      core.Store
	bus        *events.Bus
	logger     *slog.Logger
	enableCORS bool
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCORS toggles permissive CORS for dashboard access.
func WithCORS(enabled bool) ServerOption {
	return func(s *Server) {
		s.enableCORS = enabled
	}
}

// NewServer creates a new API server.
func NewServer(store core.Store, bus *events.Bus, opts ...ServerOption) *Server {
	s := &Server{
		store:      store,
		bus:        bus,
		logger:     slog.Default(),
		enableCORS: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.loggingMiddleware)

	if s.enableCORS {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Get("/{projectID}", s.handleGetProject)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)

			r.Route("/{runID}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/nodes", s.handleListRunNodes)
				r.Get("/edges", s.handleListRunEdges)
				r.Get("/logs", s.handleListRunLogs)
				r.Get("/costs", s.handleListRunCosts)
			})
		})

		r.Post("/messages", s.handleCreateMessage)
		r.Get("/messages", s.handleListMessages)

		// SSE endpoint for real-time updates
		r.Get("/events", s.handleSSE)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
