package documents

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/singleflight"

	"github.com/liftline-crm/liftline/internal/observability"
	"github.com/liftline-crm/liftline/internal/platform/httpx"
	"github.com/liftline-crm/liftline/internal/quotes"
	"github.com/liftline-crm/liftline/internal/rasterize"
	"github.com/liftline-crm/liftline/internal/templates"
	"github.com/liftline-crm/liftline/jobs"
)

// Handler exposes the document delivery endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	templateRepo templates.Repository
	repairer     *templates.Repairer
	rasterizer   *rasterize.Client
	cache        *RenderCache
	tasks        *asynq.Client
	metrics      *observability.Metrics

	renderGroup singleflight.Group
}

// NewHandler creates the document handler. tasks may be nil, in which case
// the repair trigger runs the pass inline instead of enqueueing it.
func NewHandler(
	logger *slog.Logger,
	service *Service,
	templateRepo templates.Repository,
	repairer *templates.Repairer,
	rasterizer *rasterize.Client,
	cache *RenderCache,
	tasks *asynq.Client,
	metrics *observability.Metrics,
) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		templateRepo: templateRepo,
		repairer:     repairer,
		rasterizer:   rasterizer,
		cache:        cache,
		tasks:        tasks,
		metrics:      metrics,
	}
}

// MountRoutes registers document routes. Download is rate limited separately:
// each download occupies the rasterizer.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quotations/{id}/preview", h.preview)
	r.Get("/quotations/{id}/preview/iframe", h.previewIframe)
	r.Post("/print", h.print)
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/download", h.download)
	r.Get("/templates/debug", h.debug)
	r.Post("/templates/repair", h.repair)
	r.Get("/rasterizer/ping", h.ping)
}

type renderRequest struct {
	QuotationID int64  `json:"quotation_id"`
	TemplateID  string `json:"template_id"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	quotationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "quotation id must be numeric")
		return
	}
	templateID := r.URL.Query().Get("templateId")

	doc, err := h.service.Render(r.Context(), quotationID, templateID)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	h.metrics.ObserveRender("preview", doc.Degraded)
	h.setDegradedHeader(w, doc)

	if r.URL.Query().Get("format") == "json" {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"html": doc.HTML,
			"template": map[string]any{
				"id":    doc.Template.ID,
				"name":  doc.Template.Name,
				"theme": doc.Template.Theme,
			},
			"degraded":        doc.Degraded,
			"degraded_fields": doc.DegradedFields,
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc.HTML))
}

func (h *Handler) previewIframe(w http.ResponseWriter, r *http.Request) {
	quotationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "quotation id must be numeric")
		return
	}
	templateID := r.URL.Query().Get("templateId")

	resolved, err := h.service.Resolve(r.Context(), templateID)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}

	// A conditional match must not mask a missing quotation; verify it exists
	// before answering 304.
	quotation, err := h.service.Quotation(r.Context(), quotationID)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	validator := CacheValidator(resolved.Template.ID, resolved.Template.UpdatedAt, resolved.Degraded)

	// The preview is embedded by the CRM front end; same-origin framing only.
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("ETag", validator)
	w.Header().Set("Cache-Control", "no-cache")

	if r.Header.Get("If-None-Match") == validator {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	key := strconv.FormatInt(quotationID, 10) + ":" + validator
	if html, ok := h.cache.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}

	value, err, _ := h.renderGroup.Do(key, func() (interface{}, error) {
		doc := h.service.RenderQuotation(quotation, resolved)
		// Coalesced followers share this result; detach from the leader's
		// request context so its cancellation cannot fail the group or skip
		// the cache write.
		h.cache.Set(context.WithoutCancel(r.Context()), key, doc.HTML)
		return doc, nil
	})
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	doc := value.(*Document)
	h.metrics.ObserveRender("iframe", doc.Degraded)
	h.setDegradedHeader(w, doc)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc.HTML))
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	doc, err := h.service.Render(r.Context(), req.QuotationID, req.TemplateID)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	h.metrics.ObserveRender("print", doc.Degraded)
	h.setDegradedHeader(w, doc)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc.HTML))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	doc, result, filename, err := h.service.Download(r.Context(), req.QuotationID, req.TemplateID)
	if err != nil {
		h.respondRenderError(w, err)
		return
	}
	h.metrics.ObserveRender("download", doc.Degraded)
	if result.Fallback {
		h.metrics.ObserveRasterizerFallback()
	}
	h.setDegradedHeader(w, doc)
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (h *Handler) debug(w http.ResponseWriter, r *http.Request) {
	records, err := h.templateRepo.List(r.Context())
	if err != nil {
		h.logger.Error("list templates for debug", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type entry struct {
		TemplateID string                      `json:"template_id"`
		Name       string                      `json:"name"`
		Fields     []templates.FieldDiagnostic `json:"fields"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		out = append(out, entry{
			TemplateID: rec.ID,
			Name:       rec.Name,
			Fields:     templates.Diagnose(rec),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	if h.tasks != nil {
		task := jobs.NewTemplateRepairTask()
		if _, err := h.tasks.EnqueueContext(r.Context(), task); err != nil {
			h.logger.Error("enqueue template repair", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "enqueued"})
		return
	}

	reports, err := h.repairer.RepairAll(r.Context())
	if err != nil {
		h.logger.Error("template repair", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	changed := 0
	for _, report := range reports {
		if report.Changed() {
			changed++
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scanned": len(reports),
		"changed": changed,
		"reports": reports,
	})
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.rasterizer.Ping(r.Context()); err != nil {
		h.logger.Warn("rasterizer ping failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Rasterizer Unavailable", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) setDegradedHeader(w http.ResponseWriter, doc *Document) {
	if doc.Degraded {
		w.Header().Set("X-Template-Degraded", "true")
	}
}

func (h *Handler) respondRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, templates.ErrNotFound), errors.Is(err, templates.ErrMismatchedTemplate):
		httpx.Problem(w, http.StatusNotFound, "Template Not Found", err.Error())
	case errors.Is(err, quotes.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Quotation Not Found", err.Error())
	default:
		h.logger.Error("render document", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
