package templates

// CreateTemplateRequest is the builder API payload for a new template.
type CreateTemplateRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=200"`
	Description string         `json:"description" validate:"max=2000"`
	Theme       Theme          `json:"theme" validate:"omitempty,oneof=professional-blue classic-black modern-teal elegant-maroon"`
	Category    string         `json:"category" validate:"max=100"`
	Elements    []Element      `json:"elements"`
	Layout      map[string]any `json:"layout"`
	Settings    *Settings      `json:"settings"`
	Branding    Branding       `json:"branding"`
}

func (r CreateTemplateRequest) toTemplate() *Template {
	theme := r.Theme
	if !KnownTheme(theme) {
		theme = ThemeProfessionalBlue
	}
	settings := DefaultSettings()
	if r.Settings != nil {
		settings = *r.Settings
	}
	return &Template{
		Name:        r.Name,
		Description: r.Description,
		Theme:       theme,
		Category:    r.Category,
		IsActive:    true,
		Elements:    r.Elements,
		Layout:      r.Layout,
		Settings:    settings,
		Branding:    r.Branding,
	}
}

// SaveTemplateRequest replaces the full editable surface of a template.
type SaveTemplateRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=200"`
	Description string         `json:"description" validate:"max=2000"`
	Theme       Theme          `json:"theme" validate:"omitempty,oneof=professional-blue classic-black modern-teal elegant-maroon"`
	Category    string         `json:"category" validate:"max=100"`
	Elements    []Element      `json:"elements"`
	Layout      map[string]any `json:"layout"`
	Settings    *Settings      `json:"settings"`
	Branding    Branding       `json:"branding"`
}

func (r SaveTemplateRequest) toTemplate() *Template {
	return CreateTemplateRequest(r).toTemplate()
}
