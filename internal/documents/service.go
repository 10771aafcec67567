// Package documents orchestrates template resolution, context building,
// rendering and rasterization for quotation documents.
package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liftline-crm/liftline/internal/quotes"
	"github.com/liftline-crm/liftline/internal/rasterize"
	"github.com/liftline-crm/liftline/internal/render"
	"github.com/liftline-crm/liftline/internal/templates"
)

// Document is one rendered quotation document with its resolution metadata.
type Document struct {
	HTML           string
	Template       *templates.Template
	Degraded       bool
	DegradedFields []string
	Quotation      *quotes.Quotation
}

// ETag returns the weak cache validator for this document.
func (d *Document) ETag() string {
	return CacheValidator(d.Template.ID, d.Template.UpdatedAt, d.Degraded)
}

// Service runs the document pipeline. Render operations are stateless and
// side-effect free aside from store reads; concurrent renders share nothing.
type Service struct {
	resolver   *templates.Resolver
	quotes     quotes.Repository
	builder    *render.ContextBuilder
	engine     *render.Engine
	rasterizer *rasterize.Client
	logger     *slog.Logger
}

// NewService wires the document pipeline.
func NewService(
	resolver *templates.Resolver,
	quotesRepo quotes.Repository,
	builder *render.ContextBuilder,
	engine *render.Engine,
	rasterizer *rasterize.Client,
	logger *slog.Logger,
) *Service {
	return &Service{
		resolver:   resolver,
		quotes:     quotesRepo,
		builder:    builder,
		engine:     engine,
		rasterizer: rasterizer,
		logger:     logger,
	}
}

// Resolve picks the template for a render cycle without rendering. Used by
// the iframe endpoint to answer conditional requests before paying for a
// full render.
func (s *Service) Resolve(ctx context.Context, templateID string) (*templates.Resolved, error) {
	return s.resolver.Resolve(ctx, templateID)
}

// Render resolves the template, builds the context and renders the HTML
// document for one quotation. templateID may be empty; an explicit id that
// cannot be loaded is a hard error, never silently substituted.
func (s *Service) Render(ctx context.Context, quotationID int64, templateID string) (*Document, error) {
	resolved, err := s.resolver.Resolve(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return s.RenderResolved(ctx, quotationID, resolved)
}

// Quotation loads one quotation with its lines. The iframe endpoint verifies
// the quotation exists before answering a conditional request.
func (s *Service) Quotation(ctx context.Context, quotationID int64) (*quotes.Quotation, error) {
	quotation, err := s.quotes.GetWithLines(ctx, quotationID)
	if err != nil {
		return nil, fmt.Errorf("load quotation %d: %w", quotationID, err)
	}
	return quotation, nil
}

// RenderResolved renders a quotation against an already resolved template.
func (s *Service) RenderResolved(ctx context.Context, quotationID int64, resolved *templates.Resolved) (*Document, error) {
	quotation, err := s.Quotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	return s.RenderQuotation(quotation, resolved), nil
}

// RenderQuotation renders an already loaded quotation against a resolved
// template. Pure; no I/O, so a caller's cancellation cannot fail it.
func (s *Service) RenderQuotation(quotation *quotes.Quotation, resolved *templates.Resolved) *Document {
	renderCtx := s.builder.Build(quotation)
	html := s.engine.Render(resolved.Template, renderCtx)
	if resolved.Degraded {
		html = degradedComment(resolved.DegradedFields) + html
		s.logger.Warn("rendered in degraded mode",
			slog.String("template_id", resolved.Template.ID),
			slog.String("fields", strings.Join(resolved.DegradedFields, ",")))
	}

	return &Document{
		HTML:           html,
		Template:       resolved.Template,
		Degraded:       resolved.Degraded,
		DegradedFields: resolved.DegradedFields,
		Quotation:      quotation,
	}
}

// Download renders and rasterizes one quotation. The result carries the
// fallback flag when the rasterizer was unavailable; the suggested filename
// derives from the quotation number.
func (s *Service) Download(ctx context.Context, quotationID int64, templateID string) (*Document, rasterize.Result, string, error) {
	doc, err := s.Render(ctx, quotationID, templateID)
	if err != nil {
		return nil, rasterize.Result{}, "", err
	}
	result := s.rasterizer.Convert(ctx, doc.HTML, rasterize.Options{
		PageSize: doc.Template.Settings.PageSize,
		Margins:  doc.Template.Settings.Margins,
	})
	filename := downloadFilename(doc.Quotation.Number, result.Fallback)
	return doc, result, filename, nil
}

func downloadFilename(number string, fallback bool) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, number)
	if base == "" {
		base = "quotation"
	}
	if fallback {
		return "quotation-" + base + ".html"
	}
	return "quotation-" + base + ".pdf"
}

func degradedComment(fields []string) string {
	return "<!-- degraded: repaired-on-read fields: " + strings.Join(fields, ", ") + " -->\n"
}
