package templates

import (
	"context"
	"errors"
	"testing"
)

func validRecord(id string) *Record {
	return &Record{
		ID:          id,
		Name:        "Template " + id,
		Theme:       string(ThemeClassicBlack),
		IsActive:    true,
		ElementsRaw: []byte(`[{"id":"h","type":"header","content":{"title":"QUOTATION"}}]`),
		LayoutRaw:   []byte(`{}`),
		SettingsRaw: []byte(`{"pageSize":"A4"}`),
		BrandingRaw: []byte(`{}`),
	}
}

func TestResolveExplicitID(t *testing.T) {
	repo := newFakeRepo(validRecord("tpl-1"), validRecord("tpl-2"))
	resolver := NewResolver(repo, "tpl-2", discardLogger())

	res, err := resolver.Resolve(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Template.ID != "tpl-1" {
		t.Fatalf("expected tpl-1, got %s", res.Template.ID)
	}
	if res.Degraded {
		t.Fatalf("clean record should not be degraded")
	}
}

func TestResolveExplicitIDMissingHardFails(t *testing.T) {
	repo := newFakeRepo(validRecord("tpl-default"))
	repo.defaultID = "tpl-default"
	resolver := NewResolver(repo, "tpl-default", discardLogger())

	_, err := resolver.Resolve(context.Background(), "tpl-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("explicit id must not fall through to defaults, got err=%v", err)
	}
}

func TestResolveExplicitIDMismatch(t *testing.T) {
	repo := newFakeRepo()
	repo.records["tpl-asked"] = validRecord("tpl-other")
	resolver := NewResolver(repo, "", discardLogger())

	_, err := resolver.Resolve(context.Background(), "tpl-asked")
	if !errors.Is(err, ErrMismatchedTemplate) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}
}

func TestResolveConfiguredDefaultFallsThrough(t *testing.T) {
	repo := newFakeRepo(validRecord("tpl-store-default"))
	repo.defaultID = "tpl-store-default"
	resolver := NewResolver(repo, "tpl-gone", discardLogger())

	res, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Template.ID != "tpl-store-default" {
		t.Fatalf("expected store default, got %s", res.Template.ID)
	}
}

func TestResolveBuiltinFallback(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), "", discardLogger())

	res, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Template.ID != "builtin-fallback" {
		t.Fatalf("empty store should resolve the built-in template, got %s", res.Template.ID)
	}
	if len(res.Template.Elements) == 0 {
		t.Fatalf("built-in template must carry renderable elements")
	}
	if res.Degraded {
		t.Fatalf("built-in template is synthetic, never degraded")
	}
}

func TestResolveDegradedRecord(t *testing.T) {
	rec := validRecord("tpl-bad")
	rec.ElementsRaw = []byte(`[object Object]`)
	resolver := NewResolver(newFakeRepo(rec), "", discardLogger())

	res, err := resolver.Resolve(context.Background(), "tpl-bad")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Degraded {
		t.Fatalf("corrupt elements column should mark the resolution degraded")
	}
	if len(res.DegradedFields) != 1 || res.DegradedFields[0] != "elements" {
		t.Fatalf("expected degraded fields [elements], got %v", res.DegradedFields)
	}
}
