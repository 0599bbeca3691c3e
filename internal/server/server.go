package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jjudge-oj/roster/config"
	"github.com/jjudge-oj/roster/internal/app"
	"github.com/jjudge-oj/roster/internal/handlers"
	"github.com/jjudge-oj/roster/internal/metrics"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	app        *app.App
}

// New builds the application from cfg and mounts the HTTP API on it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router := NewRouter(a, jwtSecret)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		app:        a,
	}, nil
}

// NewRouter mounts every route on a fresh chi router.
func NewRouter(a *app.App, jwtSecret string) *chi.Mux {
	auth := handlers.NewAuthHandler(a.Users, a.Verifier, jwtSecret, a.Config.Auth.TokenTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, a.Users, a.Overlay, auth.RequireAuth)
	})
	router.Route("/todos", func(r chi.Router) {
		handlers.TodoRouter(r, a.Todos, auth.RequireAuth)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the application.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.app.Close())
}
