// Package router wires the embedder's optional admin sidecar: liveness,
// Prometheus metrics, and the migration-runner endpoint. It carries no
// ingestion traffic — the CLI dispatcher and workers never go through HTTP.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bcgov/epic-search-embedder/internal/handler"
	"github.com/bcgov/epic-search-embedder/internal/middleware"
)

// Dependencies holds the services the admin sidecar router needs.
type Dependencies struct {
	DB         handler.DBPinger
	Version    string
	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	AdminAuthSecret  string
	AdminMigrateDeps handler.AdminMigrateDeps
}

// internalAuthOnly gates admin endpoints behind a shared secret header.
func internalAuthOnly(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Internal-Auth")
		if secret == "" || token != secret {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	}
}

// New creates the admin sidecar's Chi router.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logging)
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/healthz", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Post("/admin/migrate", internalAuthOnly(deps.AdminAuthSecret,
		handler.AdminMigrate(deps.AdminMigrateDeps)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
