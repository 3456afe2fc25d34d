package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"watchtrack/backend/internal/audit"
	auditrepo "watchtrack/backend/internal/audit/repository"
	"watchtrack/backend/internal/auth"
	authhandler "watchtrack/backend/internal/auth/handler"
	"watchtrack/backend/internal/config"
	"watchtrack/backend/internal/db"
	"watchtrack/backend/internal/guard"
	healthhandler "watchtrack/backend/internal/health/handler"
	"watchtrack/backend/internal/logging"
	"watchtrack/backend/internal/security"
	"watchtrack/backend/internal/server"
	"watchtrack/backend/internal/server/middleware"
	"watchtrack/backend/internal/session"
	sessionrepo "watchtrack/backend/internal/session/repository"
	userrepo "watchtrack/backend/internal/user/repository"
	watchlisthandler "watchtrack/backend/internal/watchlist/handler"
	watchlistrepo "watchtrack/backend/internal/watchlist/repository"
)

const sessionPurgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	items := watchlistrepo.NewPostgresRepository(conn)
	sessions := session.NewManager(sessionrepo.NewPostgresRepository(conn), cfg.SessionLifetime(), logger)
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(conn), middleware.GetClientIP, logger)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.TokenSecret), cfg.TokenIssuer, cfg.TokenAudience, cfg.TokenLifetime())
	cookies := security.NewCookieCodec([]byte(cfg.SessionSecret))

	authService := auth.NewService(users, hasher, tokens, sessions, auditLog, logger)
	resolver := auth.NewResolver(sessions, tokens, users, auditLog, logger)

	engine, err := guard.NewEngine()
	if err != nil {
		log.Fatalf("guard: %v", err)
	}

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)
	resolve := middleware.Resolve(resolver, cookies, cfg.SessionCookieName, metrics)

	handlers := server.Handlers{
		Auth:      authhandler.New(authService, cookies, cfg.SessionCookieName, cfg.SessionLifetime(), true, logger),
		Watchlist: watchlisthandler.New(items, engine, logger),
		Health:    healthhandler.New(conn),
	}
	router := server.NewRouter(handlers, resolve, metrics, prometheus.DefaultGatherer, logger)
	srv := server.New(cfg.HTTPAddr, router, logger)

	purgeCtx, stopPurge := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessions.PurgeExpired(purgeCtx)
			case <-purgeCtx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("serve: %v", err)
		}
	case <-quit:
	}

	stopPurge()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
