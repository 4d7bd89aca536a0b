// Package server provides the HTTP server and routing for the wealth service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/wealth/internal/di"
	"github.com/aristath/wealth/internal/events"
	coveragehandlers "github.com/aristath/wealth/internal/modules/coverage/handlers"
	currencyhandlers "github.com/aristath/wealth/internal/modules/currency/handlers"
	ledgerhandlers "github.com/aristath/wealth/internal/modules/ledger/handlers"
	performancehandlers "github.com/aristath/wealth/internal/modules/performance/handlers"
	portfoliohandlers "github.com/aristath/wealth/internal/modules/portfolio/handlers"
	sensitivityhandlers "github.com/aristath/wealth/internal/modules/sensitivity/handlers"
	snapshothandlers "github.com/aristath/wealth/internal/modules/snapshots/handlers"
)

// Version is reported by /health.
var Version = "dev"

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Container *di.Container
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	var jobs JobLister
	if c.Scheduler != nil {
		jobs = c.Scheduler
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		container:      c,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, c.Databases(), jobs, c.RateCache),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// No WriteTimeout: websocket streams stay open, other routes use middleware.Timeout.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The event stream is long lived and must not be wrapped by the timeout.
		r.Get("/events/stream", events.NewStreamHandler(c.EventBus, c.RateCache, s.log).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
			})

			portfoliohandlers.NewHandler(c.PortfolioService, s.log).RegisterRoutes(r)
			currencyhandlers.NewHandler(c.RateCache, c.Consolidator, s.log).RegisterRoutes(r)
			ledgerhandlers.NewHandler(c.LedgerRepo, s.log).RegisterRoutes(r)
			snapshothandlers.NewHandler(c.SnapshotEngine, s.log).RegisterRoutes(r)
			performancehandlers.NewHandler(c.PerformanceAnalyzer, s.log).RegisterRoutes(r)
			sensitivityhandlers.NewHandler(c.SensitivityService, s.log).RegisterRoutes(r)
			coveragehandlers.NewHandler(c.CoverageService, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
