// Package httptransport assembles the public HTTP surface: the middleware
// stack, the authenticated /v1 API and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apihub/internal/platform/health"
	"apihub/pkg/platform/middleware/auth"
	"apihub/pkg/platform/middleware/request"
	"apihub/pkg/platform/middleware/requesttime"
)

// DefaultMaxBodyBytes bounds request bodies when RouterConfig leaves it unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// RouteRegistrar is implemented by every bounded context's HTTP handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// RouterConfig carries everything NewRouter mounts. API handlers are served
// behind bearer authentication; Health and Metrics are not.
type RouterConfig struct {
	API            []RouteRegistrar
	Health         *health.Handler
	Metrics        http.Handler
	Validator      auth.TokenValidator
	RequestMetrics *request.Metrics
	MaxBodyBytes   int64
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.RequestMetrics, routePattern))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(maxBody))
		r.Use(auth.RequireAuth(cfg.Validator, logger))
		r.Use(requesttime.Middleware)
		for _, h := range cfg.API {
			h.Register(r)
		}
	})

	return r
}

// routePattern labels latency by chi route pattern so path parameters do not
// explode metric cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
