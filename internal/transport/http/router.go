// Package httptransport assembles the HTTP surface: authenticated template
// and audit routes, the public verification endpoint, and the operational
// endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fortaudit/internal/platform/middleware"
	"fortaudit/internal/transport/http/shared"
)

// Registrar is implemented by feature handlers that mount authenticated
// routes.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes served without authentication.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// HealthChecker reports readiness of one dependency, keyed by name.
type HealthChecker func() error

type Router struct {
	logger   *slog.Logger
	health   map[string]HealthChecker
	handlers []Registrar
	public   []PublicRegistrar
}

type Option func(*Router)

func WithHandler(h Registrar) Option {
	return func(rt *Router) { rt.handlers = append(rt.handlers, h) }
}

func WithPublicHandler(h PublicRegistrar) Option {
	return func(rt *Router) { rt.public = append(rt.public, h) }
}

func WithHealthCheck(name string, check HealthChecker) Option {
	return func(rt *Router) { rt.health[name] = check }
}

func New(logger *slog.Logger, opts ...Option) *Router {
	rt := &Router{
		logger: logger,
		health: map[string]HealthChecker{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler builds the chi router. The ambient middleware stack applies to
// every route; authentication is attached per handler group.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(rt.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range rt.public {
		h.RegisterPublic(r)
	}
	for _, h := range rt.handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range rt.health {
		if err := check(); err != nil {
			rt.logger.WarnContext(r.Context(), "health check failed",
				"check", name,
				"error", err.Error(),
			)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	shared.WriteJSON(w, status, resp)
}
