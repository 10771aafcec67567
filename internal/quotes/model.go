package quotes

import "time"

// Quotation is the crane-rental quotation header with its customer and
// equipment lines, as read from the CRM store. The document subsystem treats
// pricing fields as already computed by the pricing collaborator.
type Quotation struct {
	ID              int64      `json:"id" db:"id"`
	Number          string     `json:"number" db:"number"`
	QuoteDate       time.Time  `json:"quote_date" db:"quote_date"`
	ValidUntil      *time.Time `json:"valid_until,omitempty" db:"valid_until"`
	MachineType     string     `json:"machine_type" db:"machine_type"`
	DurationDays    float64    `json:"duration_days" db:"duration_days"`
	PaymentTerms    string     `json:"payment_terms" db:"payment_terms"`
	TaxRate         float64    `json:"tax_rate" db:"tax_rate"`
	BaseRate        float64    `json:"base_rate" db:"base_rate"`
	MobDemobCost    float64    `json:"mob_demob_cost" db:"mob_demob_cost"`
	RiskAdjustment  float64    `json:"risk_adjustment" db:"risk_adjustment"`
	UsageLoadFactor float64    `json:"usage_load_factor" db:"usage_load_factor"`
	Customer        Customer   `json:"customer" db:"-"`
	Lines           []Line     `json:"lines,omitempty" db:"-"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Customer is the related client block.
type Customer struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Company string `json:"company" db:"company"`
	Address string `json:"address" db:"address"`
	Phone   string `json:"phone" db:"phone"`
	Email   string `json:"email" db:"email"`
}

// Line is one equipment line item. Quantity is text in the legacy schema;
// the context builder coerces it.
type Line struct {
	ID           int64   `json:"id" db:"id"`
	QuotationID  int64   `json:"quotation_id" db:"quotation_id"`
	Description  string  `json:"description" db:"description"`
	JobType      string  `json:"job_type" db:"job_type"`
	Quantity     string  `json:"quantity" db:"quantity"`
	DurationDays float64 `json:"duration_days" db:"duration_days"`
	Rate         float64 `json:"rate" db:"rate"`
	RentalCost   float64 `json:"rental_cost" db:"rental_cost"`
	MobDemobCost float64 `json:"mob_demob_cost" db:"mob_demob_cost"`
	LineOrder    int     `json:"line_order" db:"line_order"`
}
