package render

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/liftline-crm/liftline/internal/quotes"
)

// Company is the issuing company block of a rendering context.
type Company struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// Client is the recipient block.
type Client struct {
	Name    string
	Company string
	Address string
	Phone   string
	Email   string
}

// QuotationInfo carries the header fields of the quotation being rendered.
type QuotationInfo struct {
	Number       string
	Date         string
	ValidUntil   string
	MachineType  string
	Duration     string
	PaymentTerms string
	TaxRate      float64
}

// Item is one row of the items table.
type Item struct {
	No          int
	Description string
	JobType     string
	Quantity    float64
	Duration    string
	Rate        float64
	Rental      float64
	MobDemob    float64
	RiskUsage   float64
}

// Totals are the computed money totals. Every field is finite.
type Totals struct {
	Rental    float64
	MobDemob  float64
	RiskUsage float64
	Subtotal  float64
	Tax       float64
	Total     float64
}

// Context is the normalized, template-agnostic data for one document
// instance. It is derived, never persisted, and rebuilt for every render.
type Context struct {
	Company   Company
	Client    Client
	Quotation QuotationInfo
	Items     []Item
	Totals    Totals

	money func(float64) string
}

// Money formats a money value with locale-aware grouping and no fraction
// digits. Applied consistently to every money field the renderer emits.
func (c *Context) Money(v float64) string {
	if c.money == nil {
		return strconv.FormatFloat(math.Round(finite(v)), 'f', 0, 64)
	}
	return c.money(finite(v))
}

// lookup exposes the dot-path placeholder namespace. Missing paths resolve to
// the empty string in the engine.
func (c *Context) lookup() map[string]string {
	return map[string]string{
		"company.name":           c.Company.Name,
		"company.address":        c.Company.Address,
		"company.phone":          c.Company.Phone,
		"company.email":          c.Company.Email,
		"client.name":            c.Client.Name,
		"client.company":         c.Client.Company,
		"client.address":         c.Client.Address,
		"client.phone":           c.Client.Phone,
		"client.email":           c.Client.Email,
		"quotation.number":       c.Quotation.Number,
		"quotation.date":         c.Quotation.Date,
		"quotation.validUntil":   c.Quotation.ValidUntil,
		"quotation.machineType":  c.Quotation.MachineType,
		"quotation.duration":     c.Quotation.Duration,
		"quotation.paymentTerms": c.Quotation.PaymentTerms,
		"quotation.taxRate":      strconv.FormatFloat(c.Quotation.TaxRate, 'f', -1, 64),
		"totals.rental":          c.Money(c.Totals.Rental),
		"totals.mobDemob":        c.Money(c.Totals.MobDemob),
		"totals.riskUsage":       c.Money(c.Totals.RiskUsage),
		"totals.subtotal":        c.Money(c.Totals.Subtotal),
		"totals.tax":             c.Money(c.Totals.Tax),
		"totals.total":           c.Money(c.Totals.Total),
	}
}

// CompanyProfile is the issuing company configuration.
type CompanyProfile struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// ContextBuilder maps a quotation record into a rendering context.
// Pure transformation, no I/O.
type ContextBuilder struct {
	profile CompanyProfile
	printer *message.Printer
}

// NewContextBuilder creates a builder formatting money for the given locale.
func NewContextBuilder(profile CompanyProfile, locale language.Tag) *ContextBuilder {
	return &ContextBuilder{
		profile: profile,
		printer: message.NewPrinter(locale),
	}
}

// Build produces the rendering context for one quotation. Numeric fields are
// coerced to finite values; an empty line list synthesizes one placeholder
// row from the header so the items table is never empty.
func (b *ContextBuilder) Build(q *quotes.Quotation) *Context {
	ctx := &Context{
		Company: Company(b.profile),
		Client: Client{
			Name:    q.Customer.Name,
			Company: q.Customer.Company,
			Address: q.Customer.Address,
			Phone:   q.Customer.Phone,
			Email:   q.Customer.Email,
		},
		Quotation: QuotationInfo{
			Number:       q.Number,
			Date:         formatDate(q.QuoteDate),
			MachineType:  q.MachineType,
			Duration:     formatDuration(finite(q.DurationDays)),
			PaymentTerms: q.PaymentTerms,
			TaxRate:      finite(q.TaxRate),
		},
		money: b.formatMoney,
	}
	if q.ValidUntil != nil {
		ctx.Quotation.ValidUntil = formatDate(*q.ValidUntil)
	}

	// Composite computed once so every row carries the same value.
	riskUsageTotal := finite(q.RiskAdjustment) + finite(q.UsageLoadFactor)

	if len(q.Lines) == 0 {
		rental := finite(q.BaseRate) * finite(q.DurationDays)
		ctx.Items = []Item{{
			No:          1,
			Description: q.MachineType,
			JobType:     "Rental",
			Quantity:    1,
			Duration:    formatDuration(finite(q.DurationDays)),
			Rate:        finite(q.BaseRate),
			Rental:      rental,
			MobDemob:    finite(q.MobDemobCost),
			RiskUsage:   riskUsageTotal,
		}}
	} else {
		ctx.Items = make([]Item, 0, len(q.Lines))
		for i, line := range q.Lines {
			quantity := parseNumber(line.Quantity)
			rental := finite(line.RentalCost)
			if rental == 0 {
				rental = quantity * finite(line.Rate) * finite(line.DurationDays)
			}
			ctx.Items = append(ctx.Items, Item{
				No:          i + 1,
				Description: line.Description,
				JobType:     line.JobType,
				Quantity:    quantity,
				Duration:    formatDuration(finite(line.DurationDays)),
				Rate:        finite(line.Rate),
				Rental:      rental,
				MobDemob:    finite(line.MobDemobCost),
				RiskUsage:   riskUsageTotal,
			})
		}
	}

	for _, item := range ctx.Items {
		ctx.Totals.Rental += item.Rental
	}
	ctx.Totals.MobDemob = finite(q.MobDemobCost)
	ctx.Totals.RiskUsage = riskUsageTotal
	ctx.Totals.Subtotal = ctx.Totals.Rental + ctx.Totals.MobDemob + ctx.Totals.RiskUsage
	ctx.Totals.Tax = ctx.Totals.Subtotal * finite(q.TaxRate) / 100
	ctx.Totals.Total = ctx.Totals.Subtotal + ctx.Totals.Tax
	return ctx
}

func (b *ContextBuilder) formatMoney(v float64) string {
	return b.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0)))
}

// finite coerces NaN and infinities to zero so they never reach the renderer.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseNumber coerces a legacy text quantity to a finite number, defaulting
// to zero when unparsable.
func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(v)
}

func formatDuration(days float64) string {
	n := strconv.FormatFloat(days, 'f', -1, 64)
	if days == 1 {
		return n + " day"
	}
	return n + " days"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}
