package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/liftline-crm/liftline/internal/documents"
	"github.com/liftline-crm/liftline/internal/observability"
	"github.com/liftline-crm/liftline/internal/templates"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	TemplateHandler  *templates.Handler
	DocumentsHandler *documents.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the document service.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			params.TemplateHandler.MountRoutes(r)
		})
		r.Route("/documents", func(r chi.Router) {
			params.DocumentsHandler.MountRoutes(r)
		})
	})

	return r
}
