// Package httpapi assembles the chi router: the shared middleware chain,
// probes, metrics and every module under /api/v1.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcaflow/internal/platform/metrics"
	"rcaflow/internal/ratelimit"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/platform/httputil"
	"rcaflow/pkg/platform/middleware/metadata"
	"rcaflow/pkg/platform/middleware/request"
)

// Routes is implemented by every module handler.
type Routes interface {
	Register(r chi.Router)
}

// PublicRoutes mounts endpoints that need no bearer token.
type PublicRoutes interface {
	RegisterPublic(r chi.Router)
}

// Check reports the health of one dependency for /readyz.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   []Check

	Limiter     *ratelimit.Limiter
	LoginPolicy ratelimit.Policy
	APIPolicy   ratelimit.Policy

	// Authenticate resolves the bearer token into a principal.
	Authenticate func(http.Handler) http.Handler
	Public       PublicRoutes
	Modules      []Routes
}

const readinessTimeout = 2 * time.Second

var errNotFound = dErrors.New(dErrors.CodeNotFound, "route not found")

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.AccessLog(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":             string(dErrors.CodeBadRequest),
			"error_description": "method not allowed",
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.Checks, cfg.Logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Public != nil {
			r.Group(func(r chi.Router) {
				if cfg.Limiter != nil {
					r.Use(cfg.Limiter.Middleware(cfg.LoginPolicy))
				}
				cfg.Public.RegisterPublic(r)
			})
		}
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware(cfg.APIPolicy))
			}
			for _, m := range cfg.Modules {
				m.Register(r)
			}
		})
	})
	return r
}

func readiness(checks []Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
				results[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "up"
		}
		httputil.WriteJSON(w, status, map[string]any{"checks": results})
	}
}
