package templates

import (
	"encoding/json"
	"time"
)

// Theme names a built-in color palette.
type Theme string

const (
	ThemeProfessionalBlue Theme = "professional-blue"
	ThemeClassicBlack     Theme = "classic-black"
	ThemeModernTeal       Theme = "modern-teal"
	ThemeElegantMaroon    Theme = "elegant-maroon"
)

// KnownTheme reports whether t is one of the built-in palettes.
func KnownTheme(t Theme) bool {
	switch t {
	case ThemeProfessionalBlue, ThemeClassicBlack, ThemeModernTeal, ThemeElegantMaroon:
		return true
	}
	return false
}

// ElementType identifies one renderable unit kind within a template.
type ElementType string

const (
	ElementHeader        ElementType = "header"
	ElementCompanyInfo   ElementType = "company_info"
	ElementClientInfo    ElementType = "client_info"
	ElementQuotationInfo ElementType = "quotation_info"
	ElementJobDetails    ElementType = "job_details"
	ElementItemsTable    ElementType = "items_table"
	ElementChargesTable  ElementType = "charges_table"
	ElementTotals        ElementType = "totals"
	ElementTerms         ElementType = "terms"
	ElementFooter        ElementType = "footer"
	ElementCustomText    ElementType = "custom_text"
	ElementImage         ElementType = "image"
	ElementDivider       ElementType = "divider"
	ElementSpacer        ElementType = "spacer"
	ElementSignature     ElementType = "signature"
)

// KnownElementType reports whether t has a rendering rule. Unknown types are
// kept in the element list but render as a no-op.
func KnownElementType(t ElementType) bool {
	switch t {
	case ElementHeader, ElementCompanyInfo, ElementClientInfo, ElementQuotationInfo,
		ElementJobDetails, ElementItemsTable, ElementChargesTable, ElementTotals,
		ElementTerms, ElementFooter, ElementCustomText, ElementImage,
		ElementDivider, ElementSpacer, ElementSignature:
		return true
	}
	return false
}

// Position carries advisory layout hints produced by the visual editor.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is one renderable unit within a template. Content and Style are
// loosely typed property bags produced by the editor; they are read through
// the defaulting accessors below so a missing key never fails a render.
type Element struct {
	ID       string         `json:"id"`
	Type     ElementType    `json:"type"`
	Visible  bool           `json:"visible"`
	Content  map[string]any `json:"content"`
	Style    map[string]any `json:"style"`
	Position Position       `json:"position"`
}

// UnmarshalJSON defaults Visible to true when the stored payload omits it.
func (e *Element) UnmarshalJSON(data []byte) error {
	type alias Element
	tmp := struct {
		alias
		Visible *bool `json:"visible"`
	}{}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*e = Element(tmp.alias)
	e.Visible = tmp.Visible == nil || *tmp.Visible
	return nil
}

// Text returns a string content value, or fallback when absent or not a string.
func (e Element) Text(key, fallback string) string {
	if v, ok := e.Content[key].(string); ok {
		return v
	}
	return fallback
}

// Flag returns a boolean content value, or fallback when absent.
func (e Element) Flag(key string, fallback bool) bool {
	if v, ok := e.Content[key].(bool); ok {
		return v
	}
	return fallback
}

// Number returns a numeric content value, or fallback when absent.
func (e Element) Number(key string, fallback float64) float64 {
	switch v := e.Content[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// Columns returns the column visibility map for table elements. A column
// missing from the map is visible.
func (e Element) Columns() map[string]bool {
	cols := map[string]bool{}
	raw, ok := e.Content["columns"].(map[string]any)
	if !ok {
		return cols
	}
	for name, v := range raw {
		if b, ok := v.(bool); ok {
			cols[name] = b
		}
	}
	return cols
}

// StyleValue returns a style property as a string, or fallback when absent.
// Style is pass-through: the renderer does not interpret keys beyond this
// lookup, except tableHeaderBg which the table rules honor explicitly.
func (e Element) StyleValue(key, fallback string) string {
	if v, ok := e.Style[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Margins are page margins in millimetres.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Settings is page-geometry configuration. Opaque to the rendering engine
// except for margins, which the rasterizer consults.
type Settings struct {
	PageSize string  `json:"pageSize"`
	Margins  Margins `json:"margins"`
}

// DefaultSettings returns A4 with 15mm margins.
func DefaultSettings() Settings {
	return Settings{
		PageSize: "A4",
		Margins:  Margins{Top: 15, Right: 15, Bottom: 15, Left: 15},
	}
}

// Branding carries the template palette and optional logo reference.
type Branding struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	AccentColor    string `json:"accentColor"`
	LogoURL        string `json:"logoUrl"`
}

// Template is a named, versioned document definition. Elements render in
// slice order; there is no separate z-index.
type Template struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Theme       Theme          `json:"theme"`
	Category    string         `json:"category"`
	IsDefault   bool           `json:"is_default"`
	IsActive    bool           `json:"is_active"`
	CreatedBy   *string        `json:"created_by,omitempty"`
	Elements    []Element      `json:"elements"`
	Layout      map[string]any `json:"layout"`
	Settings    Settings       `json:"settings"`
	Branding    Branding       `json:"branding"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Resolved is a template instance annotated with degradation metadata for
// one render cycle. The annotation is never persisted.
type Resolved struct {
	Template       *Template
	Degraded       bool
	DegradedFields []string
}
