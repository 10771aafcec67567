package templates

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Service implements the template builder API: create, full replace-on-save,
// soft deactivate, default selection. Stored structured columns are encoded
// here so the repository stays a pure persistence adapter.
type Service struct {
	repo Repository
}

// NewService constructs the template service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get loads and decodes one template.
func (s *Service) Get(ctx context.Context, id string) (*Resolved, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return resolved(rec), nil
}

// List returns all stored templates, decoded.
func (s *Service) List(ctx context.Context) ([]*Template, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Template, 0, len(records))
	for i := range records {
		tpl, _ := records[i].Decode()
		out = append(out, tpl)
	}
	return out, nil
}

// Create stores a new template and returns it decoded.
func (s *Service) Create(ctx context.Context, req CreateTemplateRequest, createdBy string) (*Template, error) {
	tpl := req.toTemplate()
	tpl.ID = uuid.NewString()
	if createdBy != "" {
		tpl.CreatedBy = &createdBy
	}

	rec, err := encodeRecord(tpl)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, *rec); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	res, err := s.Get(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	return res.Template, nil
}

// Save replaces the full editable surface of an existing template.
// Last writer wins; concurrent editors are not coordinated.
func (s *Service) Save(ctx context.Context, id string, req SaveTemplateRequest) (*Template, error) {
	tpl := req.toTemplate()
	tpl.ID = id

	rec, err := encodeRecord(tpl)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, *rec); err != nil {
		return nil, fmt.Errorf("save template %s: %w", id, err)
	}
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return res.Template, nil
}

// SetDefault marks one template as the system default, clearing the flag on
// every other template. At most one active default exists afterwards.
func (s *Service) SetDefault(ctx context.Context, id string) error {
	return s.repo.SetDefault(ctx, id)
}

// Deactivate soft-disables a template. Rows are never hard-deleted while
// historical quotations may reference them.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

func encodeRecord(tpl *Template) (*Record, error) {
	if tpl.Elements == nil {
		tpl.Elements = []Element{}
	}
	if tpl.Layout == nil {
		tpl.Layout = map[string]any{}
	}
	elements, err := json.Marshal(tpl.Elements)
	if err != nil {
		return nil, fmt.Errorf("encode elements: %w", err)
	}
	layout, err := json.Marshal(tpl.Layout)
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	settings, err := json.Marshal(tpl.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	branding, err := json.Marshal(tpl.Branding)
	if err != nil {
		return nil, fmt.Errorf("encode branding: %w", err)
	}
	return &Record{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: tpl.Description,
		Theme:       string(tpl.Theme),
		Category:    tpl.Category,
		IsDefault:   tpl.IsDefault,
		IsActive:    tpl.IsActive,
		CreatedBy:   tpl.CreatedBy,
		ElementsRaw: elements,
		LayoutRaw:   layout,
		SettingsRaw: settings,
		BrandingRaw: branding,
	}, nil
}
