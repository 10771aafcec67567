package documents

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/liftline-crm/liftline/internal/quotes"
	"github.com/liftline-crm/liftline/internal/rasterize"
	"github.com/liftline-crm/liftline/internal/render"
	"github.com/liftline-crm/liftline/internal/templates"
)

type fakeTemplateRepo struct {
	records map[string]*templates.Record
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id string) (*templates.Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, templates.ErrNotFound
	}
	return rec, nil
}

func (r *fakeTemplateRepo) GetDefault(context.Context) (*templates.Record, error) {
	for _, rec := range r.records {
		if rec.IsDefault {
			return rec, nil
		}
	}
	return nil, templates.ErrNotFound
}

func (r *fakeTemplateRepo) List(context.Context) ([]templates.Record, error) {
	out := make([]templates.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (r *fakeTemplateRepo) Create(_ context.Context, rec templates.Record) error {
	r.records[rec.ID] = &rec
	return nil
}

func (r *fakeTemplateRepo) Save(_ context.Context, rec templates.Record) error {
	r.records[rec.ID] = &rec
	return nil
}

func (r *fakeTemplateRepo) SetDefault(context.Context, string) error { return nil }

func (r *fakeTemplateRepo) Deactivate(context.Context, string) error { return nil }

func (r *fakeTemplateRepo) UpdateFields(_ context.Context, id string, patch map[string][]byte) error {
	rec, ok := r.records[id]
	if !ok {
		return templates.ErrNotFound
	}
	for column, value := range patch {
		switch column {
		case "elements":
			rec.ElementsRaw = value
		case "layout":
			rec.LayoutRaw = value
		case "settings":
			rec.SettingsRaw = value
		case "branding":
			rec.BrandingRaw = value
		}
	}
	return nil
}

type fakeQuotesRepo struct {
	quotations map[int64]*quotes.Quotation
}

func (r *fakeQuotesRepo) GetWithLines(_ context.Context, id int64) (*quotes.Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	return q, nil
}

func templateRecord(id string, isDefault bool) *templates.Record {
	return &templates.Record{
		ID:          id,
		Name:        "Template " + id,
		Theme:       string(templates.ThemeProfessionalBlue),
		IsDefault:   isDefault,
		IsActive:    true,
		ElementsRaw: []byte(`[{"id":"h","type":"header","content":{"title":"QUOTATION"}},{"id":"t","type":"items_table"},{"id":"sum","type":"totals"}]`),
		LayoutRaw:   []byte(`{}`),
		SettingsRaw: []byte(`{"pageSize":"A4"}`),
		BrandingRaw: []byte(`{}`),
		UpdatedAt:   time.Unix(1700000000, 0),
	}
}

func testQuotation() *quotes.Quotation {
	return &quotes.Quotation{
		ID:           41,
		Number:       "QT-2026-0041",
		QuoteDate:    time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		MachineType:  "250T Crawler Crane",
		DurationDays: 10,
		TaxRate:      9,
		BaseRate:     4500,
		Customer:     quotes.Customer{Name: "Tan Wei Ming"},
	}
}

type fixture struct {
	router chi.Router
	repo   *fakeTemplateRepo
}

func newFixture(t *testing.T) *fixture {
	return newFixtureCache(t, nil)
}

func newFixtureCache(t *testing.T, cache *RenderCache) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	repo := &fakeTemplateRepo{records: map[string]*templates.Record{
		"tpl-default": templateRecord("tpl-default", true),
	}}
	quotesRepo := &fakeQuotesRepo{quotations: map[int64]*quotes.Quotation{
		41: testQuotation(),
	}}

	resolver := templates.NewResolver(repo, "", logger)
	builder := render.NewContextBuilder(render.CompanyProfile{Name: "Liftline Crane Services"}, language.English)
	engine := render.NewEngine(logger)
	rasterizer := rasterize.NewClient("http://127.0.0.1:1", logger)
	service := NewService(resolver, quotesRepo, builder, engine, rasterizer, logger)
	repairer := templates.NewRepairer(repo, logger)

	h := NewHandler(logger, service, repo, repairer, rasterizer, cache, nil, nil)
	router := chi.NewRouter()
	router.Route("/documents", h.MountRoutes)
	return &fixture{router: router, repo: repo}
}

func (f *fixture) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for name, values := range header {
		req.Header[name] = values
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPreviewRendersHTML(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/quotations/41/preview", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "QT-2026-0041")
	require.Empty(t, rec.Header().Get("X-Template-Degraded"))
}

func TestPreviewJSONFormat(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/quotations/41/preview?format=json", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	require.Contains(t, rec.Body.String(), `"tpl-default"`)
}

func TestPreviewExplicitMissingTemplate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/quotations/41/preview?templateId=tpl-gone", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewUnknownQuotation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/quotations/999/preview", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewInvalidID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/quotations/abc/preview", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewDegradedTemplate(t *testing.T) {
	f := newFixture(t)
	corrupt := templateRecord("tpl-bad", false)
	corrupt.ElementsRaw = []byte(`[object Object]`)
	f.repo.records["tpl-bad"] = corrupt

	rec := f.do(http.MethodGet, "/documents/quotations/41/preview?templateId=tpl-bad", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Header().Get("X-Template-Degraded"))
	require.Contains(t, rec.Body.String(), "<!-- degraded:")
}

func TestPreviewIframeConditionalRequest(t *testing.T) {
	f := newFixture(t)

	first := f.do(http.MethodGet, "/documents/quotations/41/preview/iframe", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "SAMEORIGIN", first.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-cache", first.Header().Get("Cache-Control"))

	etag := first.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"`), "weak validator, got %q", etag)

	second := f.do(http.MethodGet, "/documents/quotations/41/preview/iframe", "",
		http.Header{"If-None-Match": []string{etag}})
	require.Equal(t, http.StatusNotModified, second.Code)
	require.Empty(t, second.Body.String())

	// A stale validator revalidates with a fresh body and the same ETag.
	third := f.do(http.MethodGet, "/documents/quotations/41/preview/iframe", "",
		http.Header{"If-None-Match": []string{`W/"0000000000000000"`}})
	require.Equal(t, http.StatusOK, third.Code)
	require.Equal(t, etag, third.Header().Get("ETag"))
	require.Contains(t, third.Body.String(), "QT-2026-0041")
}

func TestPreviewIframeMissingQuotationNotMasked(t *testing.T) {
	f := newFixture(t)
	validator := CacheValidator("tpl-default", time.Unix(1700000000, 0), false)

	// A matching validator must not answer 304 for a quotation that does not
	// exist; existence is checked before the conditional.
	rec := f.do(http.MethodGet, "/documents/quotations/999/preview/iframe", "",
		http.Header{"If-None-Match": []string{validator}})

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewIframeCancelledRequestStillCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixtureCache(t, NewRenderCache(client, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/documents/quotations/41/preview/iframe", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	// The render shares no request-scoped state, so the gone-away requester
	// neither fails the flight nor skips the cache write.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "QT-2026-0041")
	require.NotEmpty(t, mr.Keys(), "render cache should be populated despite the canceled request context")

	second := f.do(http.MethodGet, "/documents/quotations/41/preview/iframe", "", nil)
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), "QT-2026-0041")
}

func TestPrintEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/documents/print",
		`{"quotation_id":41}`, http.Header{"Content-Type": []string{"application/json"}})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "QT-2026-0041")
}

func TestDownloadFallsBackToHTML(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/documents/download",
		`{"quotation_id":41}`, http.Header{"Content-Type": []string{"application/json"}})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Header().Get("Content-Disposition"), "quotation-QT-2026-0041.html")
	require.Contains(t, rec.Body.String(), "window.print()")
}

func TestRepairInline(t *testing.T) {
	f := newFixture(t)
	corrupt := templateRecord("tpl-bad", false)
	corrupt.ElementsRaw = []byte(`[object Object]`)
	f.repo.records["tpl-bad"] = corrupt

	rec := f.do(http.MethodPost, "/documents/templates/repair", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"scanned":2`)
	require.Contains(t, rec.Body.String(), `"changed":1`)
	require.Equal(t, "[]", string(f.repo.records["tpl-bad"].ElementsRaw))
}

func TestDebugEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/templates/debug", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"declared_type":"array"`)
}

func TestRasterizerPingDown(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/documents/rasterizer/ping", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
