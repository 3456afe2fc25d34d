// Package server assembles the HTTP router and owns the listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "watchtrack/backend/internal/auth/handler"
	healthhandler "watchtrack/backend/internal/health/handler"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/server/middleware"
	watchlisthandler "watchtrack/backend/internal/watchlist/handler"
)

// Handlers groups the route handlers the router mounts.
type Handlers struct {
	Auth      *authhandler.Handler
	Watchlist *watchlisthandler.Handler
	Health    *healthhandler.Handler
}

// NewRouter builds the chi router with the full middleware chain. resolve is
// the identity-resolution middleware from the auth package wiring.
func NewRouter(h Handlers, resolve func(http.Handler) http.Handler, metrics *middleware.Metrics, gatherer prometheus.Gatherer, log logging.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(middleware.RequestLogger(log))
	r.Use(resolve)

	r.Get("/health", h.Health.Check)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)
		r.With(middleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/watchlist/items", h.Watchlist.List)
		r.Post("/watchlist/items", h.Watchlist.Create)
		r.Put("/watchlist/items/{id}", h.Watchlist.Update)
		r.Delete("/watchlist/items/{id}", h.Watchlist.Delete)
		r.Get("/admin/users/{id}/watchlist", h.Watchlist.AdminList)
	})

	return r
}

// Server wraps http.Server with sane timeouts and graceful shutdown.
type Server struct {
	srv *http.Server
	log logging.Logger
}

func New(addr string, handler http.Handler, log logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info(ctx, "http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "http server shutting down")
	return s.srv.Shutdown(ctx)
}
