package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"authgate/internal/auth/handler"
	authmetrics "authgate/internal/auth/metrics"
	"authgate/internal/auth/oauth"
	"authgate/internal/auth/service"
	"authgate/internal/auth/store/session"
	"authgate/internal/auth/store/user"
	httpapi "authgate/internal/http"
	"authgate/internal/platform/config"
	"authgate/internal/platform/httpserver"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	"authgate/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, user.Schema); err != nil {
		return err
	}

	sessions := session.NewRedis(rdb.Client, cfg.SessionTTL, cfg.OAuth.StateTTL)
	users := user.NewPostgres(db)

	google := oauth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret)
	oauthClient := oauth.NewClient([]oauth.Provider{google}, sessions, cfg.OAuth.RedirectURLBase, nil, log)

	svc := service.New(users, sessions, oauthClient, log, authmetrics.New())
	authHandler := handler.New(svc, log, cfg.CookieSecure, cfg.SessionTTL, cfg.OAuth.StateTTL)

	router := httpapi.New(httpapi.Deps{
		Auth:    authHandler,
		Logger:  log,
		Metrics: metrics.New(),
		Redis:   rdb,
		DB:      db,
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting authgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
