// Package httpapi assembles the HTTP surface: the auth routes, health and
// metrics endpoints, and the shared middleware chain.
package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authgate/internal/auth/handler"
	"authgate/internal/platform/metrics"
	"authgate/internal/platform/middleware"
	"authgate/internal/platform/redis"
	"authgate/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth    *handler.Handler
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Redis   *redis.Client
	DB      *sql.DB
}

// New wires all public endpoints behind the shared middleware chain.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	deps.Auth.Register(r)

	r.Get("/healthz", handleHealth(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// handleHealth reports readiness: the process is healthy only when both the
// session store and the user store answer.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		checks := map[string]string{"redis": "ok", "postgres": "ok"}
		healthy := true
		if err := deps.Redis.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		if err := deps.DB.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, checks)
	}
}
