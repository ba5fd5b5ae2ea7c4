// Package http serves the monitoring surface of a training process: health
// probes, prometheus metrics and read access to recorded runs.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/DrugEx/internal/interfaces/http/handlers"
	"github.com/turtacn/DrugEx/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the route dependencies.  Nil members leave their
// routes unmounted.
type RouterConfig struct {
	HealthHandler     *handlers.HealthHandler
	RunHandler        *handlers.RunHandler
	LoggingMiddleware *middleware.LoggingMiddleware

	// MetricsHandler is mounted at MetricsPath, default /metrics.
	MetricsHandler http.Handler
	MetricsPath    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler)
	}
	r.Use(chimw.Recoverer)

	if h := cfg.HealthHandler; h != nil {
		r.Get("/healthz", h.Liveness)
		r.Get("/readyz", h.Readiness)
		r.Get("/healthz/detail", h.Detail)
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerRunRoutes(api, cfg.RunHandler)
	})

	return r
}

func registerRunRoutes(r chi.Router, h *handlers.RunHandler) {
	if h == nil {
		return
	}
	r.Route("/runs/{runID}", func(rr chi.Router) {
		rr.Get("/", h.Get)
		rr.Get("/epochs", h.ListEpochs)
		rr.Get("/samples", h.TopSamples)
	})
}

//Personal.AI order the ending
