// Package api exposes the ClaimGuard HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
	"github.com/opensource-finance/claimguard/internal/report"
)

// Dependencies are the backends the handlers use.
type Dependencies struct {
	Store         domain.ClaimStore
	Cache         domain.Cache
	Bus           domain.EventBus
	Builder       *report.Builder
	Collaborators domain.Collaborators
	Version       string

	// Per-session limits on the AI collaborator routes.
	RequestsPerMinute int
	Burst             int
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies) *Server {
	handler := NewHandler(deps, cfg.MaxUploadMB)
	limiter := NewSessionRateLimiter(deps.RequestsPerMinute, deps.Burst)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.AllowedOrigins))
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))
	router.Use(metrics.Middleware)

	// Operational endpoints (no session required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Post("/claims", handler.SubmitClaim)
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
		r.Delete("/claims/{id}", handler.DeleteClaim)
		r.Get("/claims/{id}/assessment", handler.GetAssessment)
		r.Get("/claims/{id}/report", handler.GetReport)

		// AI collaborators
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/damage/analyze", handler.AnalyzeDamage)
			r.Post("/chat/guidance", handler.GuidanceChat)
			r.Post("/chat/status", handler.StatusChat)
			r.Post("/transcribe", handler.Transcribe)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
