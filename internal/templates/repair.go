package templates

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// RepairReport records what a repair pass changed on one stored template.
type RepairReport struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Elements   bool   `json:"elements"`
	Layout     bool   `json:"layout"`
	Settings   bool   `json:"settings"`
	Branding   bool   `json:"branding"`
}

// Changed reports whether any column was rewritten.
func (r RepairReport) Changed() bool {
	return r.Elements || r.Layout || r.Settings || r.Branding
}

// Repairer normalises malformed structured columns in stored templates.
// It runs off the hot path, holds one transaction scope per row, and is
// idempotent: a second pass reports zero changed rows.
type Repairer struct {
	repo   Repository
	logger *slog.Logger
}

// NewRepairer constructs the repair service.
func NewRepairer(repo Repository, logger *slog.Logger) *Repairer {
	return &Repairer{repo: repo, logger: logger}
}

// RepairAll scans every stored template and rewrites columns that are not
// already well-formed JSON of the expected container kind. Unrecoverable
// values become an empty container. Only changed rows are written back.
func (s *Repairer) RepairAll(ctx context.Context) ([]RepairReport, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair: list templates: %w", err)
	}

	reports := make([]RepairReport, 0, len(records))
	for _, rec := range records {
		report := RepairReport{TemplateID: rec.ID, Name: rec.Name}
		patch := map[string][]byte{}

		if value, changed := repairField(rec.ElementsRaw, '['); changed {
			patch["elements"] = value
			report.Elements = true
		}
		if value, changed := repairField(rec.LayoutRaw, '{'); changed {
			patch["layout"] = value
			report.Layout = true
		}
		if value, changed := repairField(rec.SettingsRaw, '{'); changed {
			patch["settings"] = value
			report.Settings = true
		}
		if value, changed := repairField(rec.BrandingRaw, '{'); changed {
			patch["branding"] = value
			report.Branding = true
		}

		if len(patch) > 0 {
			if err := s.repo.UpdateFields(ctx, rec.ID, patch); err != nil {
				return reports, fmt.Errorf("repair: update template %s: %w", rec.ID, err)
			}
			s.logger.Info("repaired template columns",
				slog.String("template_id", rec.ID),
				slog.Int("columns", len(patch)))
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// FieldDiagnostic describes one opaque column without fully deserialising it.
// Operators use this to spot corruption before running repair.
type FieldDiagnostic struct {
	Field        string `json:"field"`
	DeclaredType string `json:"declared_type"`
	Length       int    `json:"length"`
	Preview      string `json:"preview"`
}

// Diagnose inspects the raw structured columns of one stored template.
func Diagnose(rec Record) []FieldDiagnostic {
	fields := []struct {
		name string
		raw  []byte
	}{
		{"elements", rec.ElementsRaw},
		{"layout", rec.LayoutRaw},
		{"settings", rec.SettingsRaw},
		{"branding", rec.BrandingRaw},
	}
	diags := make([]FieldDiagnostic, 0, len(fields))
	for _, f := range fields {
		diags = append(diags, FieldDiagnostic{
			Field:        f.name,
			DeclaredType: classifyRaw(f.raw),
			Length:       len(f.raw),
			Preview:      preview(f.raw, 120),
		})
	}
	return diags
}

func classifyRaw(raw []byte) string {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return "array"
		case '{':
			return "object"
		case '"':
			return "string"
		case 'n':
			return "null"
		case 't', 'f':
			return "boolean"
		default:
			if (b >= '0' && b <= '9') || b == '-' {
				return "number"
			}
			return "invalid"
		}
	}
	return "empty"
}

func preview(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	cut := raw[:max]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "…"
}
