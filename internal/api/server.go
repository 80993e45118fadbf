package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/tracker-sim/tracker-device-sim/internal/config"
	"github.com/tracker-sim/tracker-device-sim/internal/device"
)

// DebugServer represents the local inspection REST server.
type DebugServer struct {
	config *config.Config
	state  *device.State
	router chi.Router
	server *http.Server
}

// NewDebugServer creates the debug API server.
func NewDebugServer(cfg *config.Config, state *device.State) *DebugServer {
	s := &DebugServer{
		config: cfg,
		state:  state,
		router: chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *DebugServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)
		r.Get("/status", s.HandleStatus)
		r.Get("/config", s.HandleConfig)
	})
}

// ListenAndServe starts the server.
func (s *DebugServer) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("调试 API 启动")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *DebugServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
