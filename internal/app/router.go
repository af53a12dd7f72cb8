package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/interco/internal/observability"
	"github.com/odyssey-erp/interco/jobs"
)

// RouteMounter attaches a handler's routes to a sub-router.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the ops HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	JobHandler  *jobs.Handler
	ICJEHandler RouteMounter
	Metrics     *observability.Metrics
}

// NewRouter constructs the chi.Router serving health, metrics and the ICJE trigger.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ICJEHandler != nil {
		token := ""
		if params.Config != nil {
			token = params.Config.OpsToken
		}
		r.Route("/icje", func(r chi.Router) {
			r.Use(RequireToken(token, params.Logger))
			r.Use(TriggerRateLimit())
			params.ICJEHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
