package quotes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested quotation does not exist.
var ErrNotFound = errors.New("quotation not found")

// Repository reads quotation records. The document subsystem only needs the
// header with customer and ordered line items; writes stay in the CRM core.
type Repository interface {
	GetWithLines(ctx context.Context, id int64) (*Quotation, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed quotation reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetWithLines(ctx context.Context, id int64) (*Quotation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT q.id, q.number, q.quote_date, q.valid_until, q.machine_type,
		       q.duration_days, q.payment_terms, q.tax_rate, q.base_rate,
		       q.mob_demob_cost, q.risk_adjustment, q.usage_load_factor,
		       q.created_at, q.updated_at,
		       c.id, c.name, c.company, c.address, c.phone, c.email
		FROM quotations q
		JOIN customers c ON q.customer_id = c.id
		WHERE q.id = $1`, id)

	var q Quotation
	var quoteDate pgtype.Date
	var validUntil pgtype.Date
	var machineType, paymentTerms pgtype.Text
	var durationDays, taxRate, baseRate, mobDemob, risk, usage pgtype.Numeric
	var createdAt, updatedAt pgtype.Timestamptz
	var custCompany, custAddress, custPhone, custEmail pgtype.Text

	err := row.Scan(
		&q.ID, &q.Number, &quoteDate, &validUntil, &machineType,
		&durationDays, &paymentTerms, &taxRate, &baseRate,
		&mobDemob, &risk, &usage,
		&createdAt, &updatedAt,
		&q.Customer.ID, &q.Customer.Name, &custCompany, &custAddress, &custPhone, &custEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if quoteDate.Valid {
		q.QuoteDate = quoteDate.Time
	}
	if validUntil.Valid {
		val := validUntil.Time
		q.ValidUntil = &val
	}
	if machineType.Valid {
		q.MachineType = machineType.String
	}
	if paymentTerms.Valid {
		q.PaymentTerms = paymentTerms.String
	}
	q.DurationDays = numericFloat(durationDays)
	q.TaxRate = numericFloat(taxRate)
	q.BaseRate = numericFloat(baseRate)
	q.MobDemobCost = numericFloat(mobDemob)
	q.RiskAdjustment = numericFloat(risk)
	q.UsageLoadFactor = numericFloat(usage)
	if createdAt.Valid {
		q.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		q.UpdatedAt = updatedAt.Time
	}
	if custCompany.Valid {
		q.Customer.Company = custCompany.String
	}
	if custAddress.Valid {
		q.Customer.Address = custAddress.String
	}
	if custPhone.Valid {
		q.Customer.Phone = custPhone.String
	}
	if custEmail.Valid {
		q.Customer.Email = custEmail.String
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return &q, nil
}

func (r *repository) getLines(ctx context.Context, quotationID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, description, job_type, quantity,
		       duration_days, rate, rental_cost, mob_demob_cost, line_order
		FROM quotation_items
		WHERE quotation_id = $1
		ORDER BY line_order, id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var description, jobType, quantity pgtype.Text
		var durationDays, rate, rental, mobDemob pgtype.Numeric
		var lineOrder pgtype.Int4

		err := rows.Scan(
			&l.ID, &l.QuotationID, &description, &jobType, &quantity,
			&durationDays, &rate, &rental, &mobDemob, &lineOrder,
		)
		if err != nil {
			return nil, err
		}
		if description.Valid {
			l.Description = description.String
		}
		if jobType.Valid {
			l.JobType = jobType.String
		}
		if quantity.Valid {
			l.Quantity = quantity.String
		}
		l.DurationDays = numericFloat(durationDays)
		l.Rate = numericFloat(rate)
		l.RentalCost = numericFloat(rental)
		l.MobDemobCost = numericFloat(mobDemob)
		if lineOrder.Valid {
			l.LineOrder = int(lineOrder.Int32)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0
	}
	return f.Float64
}
