package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ledger-reconciliation-service/internal/api/handlers"
	"ledger-reconciliation-service/internal/api/middleware"
	"ledger-reconciliation-service/internal/session"
	"ledger-reconciliation-service/pkg/logger"
)

// Config holds API server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes int64
	// SessionTTL is the lifetime of the session cookie.
	SessionTTL time.Duration
}

// DefaultConfig returns defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		MaxUploadBytes: 20 << 20,
		SessionTTL:     session.DefaultTTL,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     logger.Logger
	manager    *session.Manager
}

// NewServer creates a new API server over manager.
func NewServer(cfg Config, manager *session.Manager, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}

	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  log.WithComponent("api_server"),
		manager: manager,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	base := handlers.NewBase(s.manager, s.config.SessionTTL)

	// Health check (no /api prefix - for load balancers)
	s.router.Get("/health", handlers.NewHealthHandler(base).ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		h := handlers.NewReconciliationsHandler(base, s.config.MaxUploadBytes)

		r.Post("/uploads/{source}", h.Upload)
		r.Post("/reconciliations", h.Reconcile)
		r.Get("/reconciliations/current", h.Current)
		r.Get("/exports/{type}", h.Export)
		r.Get("/session", h.Session)
		r.Delete("/session", h.Reset)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.WithField("addr", s.config.Addr).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
