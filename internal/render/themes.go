package render

import "github.com/liftline-crm/liftline/internal/templates"

// palette is the resolved color set for one document shell.
type palette struct {
	Primary   string
	Secondary string
	Accent    string
	Text      string
	Muted     string
	TableHead string
}

var themePalettes = map[templates.Theme]palette{
	templates.ThemeProfessionalBlue: {
		Primary:   "#1d4ed8",
		Secondary: "#1e3a8a",
		Accent:    "#3b82f6",
		Text:      "#111827",
		Muted:     "#6b7280",
		TableHead: "#1d4ed8",
	},
	templates.ThemeClassicBlack: {
		Primary:   "#111111",
		Secondary: "#333333",
		Accent:    "#555555",
		Text:      "#111111",
		Muted:     "#666666",
		TableHead: "#111111",
	},
	templates.ThemeModernTeal: {
		Primary:   "#0d9488",
		Secondary: "#115e59",
		Accent:    "#2dd4bf",
		Text:      "#134e4a",
		Muted:     "#5f6f6d",
		TableHead: "#0d9488",
	},
	templates.ThemeElegantMaroon: {
		Primary:   "#7f1d1d",
		Secondary: "#991b1b",
		Accent:    "#b91c1c",
		Text:      "#1c1917",
		Muted:     "#78716c",
		TableHead: "#7f1d1d",
	},
}

// resolvePalette applies branding overrides on top of the theme defaults.
func resolvePalette(theme templates.Theme, branding templates.Branding) palette {
	p, ok := themePalettes[theme]
	if !ok {
		p = themePalettes[templates.ThemeProfessionalBlue]
	}
	if branding.PrimaryColor != "" {
		p.Primary = branding.PrimaryColor
		p.TableHead = branding.PrimaryColor
	}
	if branding.SecondaryColor != "" {
		p.Secondary = branding.SecondaryColor
	}
	if branding.AccentColor != "" {
		p.Accent = branding.AccentColor
	}
	return p
}
