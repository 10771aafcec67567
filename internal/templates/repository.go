package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liftline-crm/liftline/internal/platform/db"
)

var (
	// ErrNotFound indicates the requested template does not exist.
	ErrNotFound = errors.New("template not found")
)

// Record is one stored template row. The four structured columns are kept as
// raw bytes; only the codec in this package inspects their encoding.
type Record struct {
	ID          string
	Name        string
	Description string
	Theme       string
	Category    string
	IsDefault   bool
	IsActive    bool
	CreatedBy   *string
	ElementsRaw []byte
	LayoutRaw   []byte
	SettingsRaw []byte
	BrandingRaw []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Decode converts the stored row into the canonical Template, reporting which
// structured fields needed defensive normalisation.
func (r *Record) Decode() (*Template, []string) {
	var degraded []string

	elements, bad := DecodeElements(r.ElementsRaw)
	if bad {
		degraded = append(degraded, "elements")
	}
	layout, bad := DecodeLayout(r.LayoutRaw)
	if bad {
		degraded = append(degraded, "layout")
	}
	settings, bad := DecodeSettings(r.SettingsRaw)
	if bad {
		degraded = append(degraded, "settings")
	}
	branding, bad := DecodeBranding(r.BrandingRaw)
	if bad {
		degraded = append(degraded, "branding")
	}

	theme := Theme(r.Theme)
	if !KnownTheme(theme) {
		theme = ThemeProfessionalBlue
	}

	return &Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Theme:       theme,
		Category:    r.Category,
		IsDefault:   r.IsDefault,
		IsActive:    r.IsActive,
		CreatedBy:   r.CreatedBy,
		Elements:    elements,
		Layout:      layout,
		Settings:    settings,
		Branding:    branding,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, degraded
}

// Repository persists template records. Structured columns pass through as
// opaque blobs; the store applies no business logic beyond persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Record, error)
	GetDefault(ctx context.Context) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, rec Record) error
	Save(ctx context.Context, rec Record) error
	SetDefault(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	UpdateFields(ctx context.Context, id string, patch map[string][]byte) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed template store adapter.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

const recordColumns = `id, name, description, theme, category, is_default, is_active,
	created_by, elements, layout, settings, branding, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM document_templates WHERE id = $1`, recordColumns), id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *repository) GetDefault(ctx context.Context) (*Record, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM document_templates
		WHERE is_default = TRUE AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`, recordColumns))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *repository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM document_templates ORDER BY updated_at DESC, id`, recordColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *repository) Create(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO document_templates
			(id, name, description, theme, category, is_default, is_active,
			 created_by, elements, layout, settings, branding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`,
		rec.ID, rec.Name, rec.Description, rec.Theme, rec.Category,
		rec.IsDefault, rec.IsActive, rec.CreatedBy,
		string(rec.ElementsRaw), string(rec.LayoutRaw),
		string(rec.SettingsRaw), string(rec.BrandingRaw),
	)
	return err
}

// Save replaces the full editable surface of a template. Last writer wins;
// there is no optimistic locking on the template document.
func (r *repository) Save(ctx context.Context, rec Record) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE document_templates
		SET name = $2, description = $3, theme = $4, category = $5,
		    elements = $6, layout = $7, settings = $8, branding = $9,
		    updated_at = NOW()
		WHERE id = $1`,
		rec.ID, rec.Name, rec.Description, rec.Theme, rec.Category,
		string(rec.ElementsRaw), string(rec.LayoutRaw),
		string(rec.SettingsRaw), string(rec.BrandingRaw),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault flags one template as the system default and clears the flag on
// every other row in the same transaction.
func (r *repository) SetDefault(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE document_templates SET is_default = FALSE WHERE is_default = TRUE AND id <> $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE document_templates SET is_default = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE document_templates
		SET is_active = FALSE, is_default = FALSE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields patches individual structured columns. Used by the repair
// service; one call is one transaction scope.
func (r *repository) UpdateFields(ctx context.Context, id string, patch map[string][]byte) error {
	if len(patch) == 0 {
		return nil
	}
	query := "UPDATE document_templates SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, column := range []string{"elements", "layout", "settings", "branding"} {
		value, ok := patch[column]
		if !ok {
			continue
		}
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, string(value))
		argPos++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var description, theme, category, createdBy pgtype.Text
	var elements, layout, settings, branding pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&rec.ID, &rec.Name, &description, &theme, &category,
		&rec.IsDefault, &rec.IsActive, &createdBy,
		&elements, &layout, &settings, &branding,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		rec.Description = description.String
	}
	if theme.Valid {
		rec.Theme = theme.String
	}
	if category.Valid {
		rec.Category = category.String
	}
	if createdBy.Valid {
		val := createdBy.String
		rec.CreatedBy = &val
	}
	if elements.Valid {
		rec.ElementsRaw = []byte(elements.String)
	}
	if layout.Valid {
		rec.LayoutRaw = []byte(layout.String)
	}
	if settings.Valid {
		rec.SettingsRaw = []byte(settings.String)
	}
	if branding.Valid {
		rec.BrandingRaw = []byte(branding.String)
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return &rec, nil
}
