package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMismatchedTemplate indicates the store returned a row whose identity
// does not match the requested id. Treated as a hard not-found class error:
// silently substituting a different template would be worse than failing.
var ErrMismatchedTemplate = errors.New("template identity mismatch")

// Resolver picks the template to render. Priority: explicit id, configured
// default id, store default flag, built-in fallback. An explicit id never
// falls through; every later step soaks its own failure.
type Resolver struct {
	repo      Repository
	defaultID string
	logger    *slog.Logger
}

// NewResolver builds a resolver. defaultID may be empty when no configured
// default exists.
func NewResolver(repo Repository, defaultID string, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, defaultID: defaultID, logger: logger}
}

// Resolve returns the template to use for one render cycle, with degradation
// metadata when the stored structure needed defensive normalisation.
func (r *Resolver) Resolve(ctx context.Context, explicitID string) (*Resolved, error) {
	if explicitID != "" {
		rec, err := r.repo.GetByID(ctx, explicitID)
		if err != nil {
			return nil, fmt.Errorf("resolve template %s: %w", explicitID, err)
		}
		if rec.ID != explicitID {
			return nil, fmt.Errorf("resolve template %s: got %s: %w", explicitID, rec.ID, ErrMismatchedTemplate)
		}
		return resolved(rec), nil
	}

	if r.defaultID != "" {
		rec, err := r.repo.GetByID(ctx, r.defaultID)
		if err == nil {
			return resolved(rec), nil
		}
		r.logger.Warn("configured default template unavailable",
			slog.String("template_id", r.defaultID), slog.Any("error", err))
	}

	rec, err := r.repo.GetDefault(ctx)
	if err == nil {
		return resolved(rec), nil
	}
	if !errors.Is(err, ErrNotFound) {
		r.logger.Warn("store default template lookup failed", slog.Any("error", err))
	}

	return &Resolved{Template: BuiltinFallback()}, nil
}

func resolved(rec *Record) *Resolved {
	tpl, degradedFields := rec.Decode()
	return &Resolved{
		Template:       tpl,
		Degraded:       len(degradedFields) > 0,
		DegradedFields: degradedFields,
	}
}

// BuiltinFallback synthesises a minimal in-memory template so the system can
// never produce zero output, even with an empty or unreachable store.
func BuiltinFallback() *Template {
	return &Template{
		ID:       "builtin-fallback",
		Name:     "Standard Quotation",
		Theme:    ThemeProfessionalBlue,
		IsActive: true,
		Elements: []Element{
			{ID: "fallback-header", Type: ElementHeader, Visible: true, Content: map[string]any{
				"title":    "QUOTATION",
				"subtitle": "{{company.name}}",
			}},
			{ID: "fallback-company", Type: ElementCompanyInfo, Visible: true, Content: map[string]any{
				"title": "From",
			}},
			{ID: "fallback-client", Type: ElementClientInfo, Visible: true, Content: map[string]any{
				"title": "To",
			}},
			{ID: "fallback-items", Type: ElementItemsTable, Visible: true, Content: map[string]any{
				"title": "Equipment & Services",
			}},
			{ID: "fallback-totals", Type: ElementTotals, Visible: true, Content: map[string]any{}},
		},
		Layout:   map[string]any{},
		Settings: DefaultSettings(),
	}
}
