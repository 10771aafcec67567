package render

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/liftline-crm/liftline/internal/templates"
)

func testEngine() *Engine {
	return NewEngine(slog.New(slog.DiscardHandler))
}

func renderContext(t *testing.T) *Context {
	t.Helper()
	return testBuilder().Build(sampleQuotation())
}

func TestRenderDeterministic(t *testing.T) {
	engine := testEngine()
	tpl := templates.BuiltinFallback()
	ctx := renderContext(t)

	first := engine.Render(tpl, ctx)
	for i := 0; i < 3; i++ {
		if got := engine.Render(tpl, ctx); got != first {
			t.Fatalf("render %d differs from the first render", i+2)
		}
	}
	if !strings.Contains(first, "QT-2026-0041") {
		t.Fatalf("document should contain the quotation number")
	}
}

func TestRenderSkipsInvisibleAndUnknownElements(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "hidden", Type: templates.ElementCustomText, Visible: false,
				Content: map[string]any{"text": "HIDDEN-MARKER"}},
			{ID: "mystery", Type: "hologram", Visible: true},
			{ID: "shown", Type: templates.ElementCustomText, Visible: true,
				Content: map[string]any{"text": "SHOWN-MARKER"}},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if strings.Contains(out, "HIDDEN-MARKER") {
		t.Fatalf("invisible element must not render")
	}
	if !strings.Contains(out, "SHOWN-MARKER") {
		t.Fatalf("visible element must render")
	}
}

func TestSubstituteMissingPathEmpty(t *testing.T) {
	lookup := map[string]string{"company.name": "Liftline"}
	if got := Substitute("Hello {{company.name}}", lookup); got != "Hello Liftline" {
		t.Fatalf("Substitute = %q", got)
	}
	if got := Substitute("x{{no.such.path}}y", lookup); got != "xy" {
		t.Fatalf("missing path should render empty, got %q", got)
	}
	if got := Substitute("{{ company.name }}", lookup); got != "Liftline" {
		t.Fatalf("whitespace inside braces should be tolerated, got %q", got)
	}
}

func TestSubstituteEscapesValues(t *testing.T) {
	lookup := map[string]string{"client.name": `<b>"Tan"</b>`}
	got := Substitute("To {{client.name}}", lookup)
	if strings.Contains(got, "<b>") {
		t.Fatalf("substituted values must be HTML-escaped, got %q", got)
	}
}

func TestRenderItemsTableHeaderOverride(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "items", Type: templates.ElementItemsTable, Visible: true,
				Style: map[string]any{"tableHeaderBg": "#ff8800"}},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if !strings.Contains(out, `background:#ff8800`) {
		t.Fatalf("tableHeaderBg override should set th background")
	}
	if strings.Contains(out, "table-header-bg") {
		t.Fatalf("tableHeaderBg must not leak into the inline style attribute")
	}
}

func TestRenderItemsTableColumnVisibility(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "items", Type: templates.ElementItemsTable, Visible: true,
				Content: map[string]any{"columns": map[string]any{"riskUsage": false}}},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if strings.Contains(out, "Risk &amp; Usage") {
		t.Fatalf("hidden column should not render its header")
	}
	// Columns absent from the map stay visible.
	if !strings.Contains(out, "Mob/Demob") {
		t.Fatalf("unlisted column should stay visible")
	}
}

func TestRenderTotalsTaxLabel(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "totals", Type: templates.ElementTotals, Visible: true},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if !strings.Contains(out, "Tax (9%)") {
		t.Fatalf("tax row should show the rate, got document without it")
	}
	if !strings.Contains(out, "Grand Total") {
		t.Fatalf("totals should include the grand total row")
	}
}

func TestRenderNeverEmptyItems(t *testing.T) {
	q := sampleQuotation()
	q.Lines = nil
	ctx := testBuilder().Build(q)

	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "items", Type: templates.ElementItemsTable, Visible: true},
		},
	}
	out := testEngine().Render(tpl, ctx)

	if !strings.Contains(out, "250T Crawler Crane") {
		t.Fatalf("items table should carry the synthesized placeholder row")
	}
}

func TestStyleAttr(t *testing.T) {
	el := templates.Element{Style: map[string]any{
		"marginTop":     float64(12),
		"textAlign":     "center",
		"tableHeaderBg": "#123456",
	}}
	got := styleAttr(el)
	if !strings.Contains(got, "margin-top:12px") {
		t.Fatalf("camelCase keys should map to kebab-case with px for numbers, got %q", got)
	}
	if !strings.Contains(got, "text-align:center") {
		t.Fatalf("string values pass through, got %q", got)
	}
	if strings.Contains(got, "table-header-bg") {
		t.Fatalf("tableHeaderBg is excluded from inline styles, got %q", got)
	}
}

func TestResolvePaletteBrandingOverride(t *testing.T) {
	pal := resolvePalette(templates.ThemeModernTeal, templates.Branding{PrimaryColor: "#010203"})
	if pal.Primary != "#010203" {
		t.Fatalf("branding primary should override theme, got %s", pal.Primary)
	}
	if pal.TableHead != "#010203" {
		t.Fatalf("primary override should also drive the table head, got %s", pal.TableHead)
	}

	base := resolvePalette(templates.ThemeModernTeal, templates.Branding{})
	if base.Primary == "" || base.Primary == "#010203" {
		t.Fatalf("theme palette should supply defaults, got %s", base.Primary)
	}
}

func TestRenderBrandingLogo(t *testing.T) {
	tpl := &templates.Template{
		Theme:    templates.ThemeProfessionalBlue,
		Branding: templates.Branding{LogoURL: "https://cdn.example/logo.png"},
		Elements: []templates.Element{
			{ID: "h", Type: templates.ElementHeader, Visible: true},
			{ID: "img", Type: templates.ElementImage, Visible: true},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if got := strings.Count(out, "https://cdn.example/logo.png"); got != 2 {
		t.Fatalf("branding logo should back both the header slot and the bare image element, found %d uses", got)
	}
}

func TestRenderBrandingLogoOverrides(t *testing.T) {
	tpl := &templates.Template{
		Theme:    templates.ThemeProfessionalBlue,
		Branding: templates.Branding{LogoURL: "https://cdn.example/logo.png"},
		Elements: []templates.Element{
			{ID: "h", Type: templates.ElementHeader, Visible: true,
				Content: map[string]any{"showLogo": false}},
			{ID: "img", Type: templates.ElementImage, Visible: true,
				Content: map[string]any{"src": "https://cdn.example/site-plan.png"}},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if strings.Contains(out, "logo.png") {
		t.Fatalf("showLogo=false header and explicit image src must not pull the branding logo")
	}
	if !strings.Contains(out, "site-plan.png") {
		t.Fatalf("explicit image src should win over the branding logo")
	}
}

func TestRenderNoLogoWithoutBranding(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.ThemeProfessionalBlue,
		Elements: []templates.Element{
			{ID: "h", Type: templates.ElementHeader, Visible: true},
			{ID: "img", Type: templates.ElementImage, Visible: true},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))

	if strings.Contains(out, "img.logo\"") || strings.Contains(out, "<img class=\"logo\"") {
		t.Fatalf("header without a branding logo should render no logo slot")
	}
	if strings.Contains(out, `class="image"`) {
		t.Fatalf("image element with neither src nor branding logo should render nothing")
	}
}

func TestRenderUnknownThemeUsesDefaultPalette(t *testing.T) {
	tpl := &templates.Template{
		Theme: templates.Theme("neon-green"),
		Elements: []templates.Element{
			{ID: "h", Type: templates.ElementHeader, Visible: true,
				Content: map[string]any{"title": "QUOTATION"}},
		},
	}
	out := testEngine().Render(tpl, renderContext(t))
	if !strings.Contains(out, "<h1>QUOTATION</h1>") {
		t.Fatalf("unknown theme should still render with the default palette")
	}
}
