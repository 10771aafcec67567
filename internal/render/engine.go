package render

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/liftline-crm/liftline/internal/templates"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Engine walks a template's ordered element list against a rendering context
// and emits a single HTML document. Rendering is deterministic for identical
// inputs: no wall-clock values enter the output.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rendering engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Render produces the HTML document for one template and context. Elements
// render in slice order; invisible elements emit nothing; an unknown element
// type is skipped with a warning rather than failing the document.
func (e *Engine) Render(tpl *templates.Template, ctx *Context) string {
	lookup := ctx.lookup()
	pal := resolvePalette(tpl.Theme, tpl.Branding)

	var body strings.Builder
	for _, el := range tpl.Elements {
		if !el.Visible {
			continue
		}
		fragment := e.renderElement(el, ctx, lookup, pal, tpl.Branding)
		if fragment != "" {
			body.WriteString(fragment)
			body.WriteString("\n")
		}
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	doc.WriteString("<title>" + html.EscapeString(ctx.Quotation.Number) + "</title>\n")
	doc.WriteString("<style>\n" + documentCSS(pal) + "</style>\n")
	doc.WriteString("</head>\n<body>\n<div class=\"document\">\n")
	doc.WriteString(body.String())
	doc.WriteString("</div>\n</body>\n</html>\n")
	return doc.String()
}

func (e *Engine) renderElement(el templates.Element, ctx *Context, lookup map[string]string, pal palette, branding templates.Branding) string {
	switch el.Type {
	case templates.ElementHeader:
		return renderHeader(el, lookup, branding)
	case templates.ElementCompanyInfo:
		return renderParty(el, "company-info", el.Text("title", "From"),
			ctx.Company.Name, "", ctx.Company.Address, ctx.Company.Phone, ctx.Company.Email)
	case templates.ElementClientInfo:
		return renderParty(el, "client-info", el.Text("title", "To"),
			ctx.Client.Name, ctx.Client.Company, ctx.Client.Address, ctx.Client.Phone, ctx.Client.Email)
	case templates.ElementQuotationInfo:
		return renderQuotationInfo(el, ctx)
	case templates.ElementJobDetails:
		return renderJobDetails(el, ctx)
	case templates.ElementItemsTable:
		return renderItemsTable(el, ctx, pal)
	case templates.ElementChargesTable:
		return renderChargesTable(el, ctx, pal)
	case templates.ElementTotals:
		return renderTotals(el, ctx)
	case templates.ElementTerms:
		return renderTerms(el, lookup)
	case templates.ElementFooter:
		return renderFooter(el, lookup)
	case templates.ElementCustomText:
		return renderCustomText(el, lookup)
	case templates.ElementImage:
		return renderImage(el, branding)
	case templates.ElementDivider:
		return `<hr class="divider"` + styleAttr(el) + `>`
	case templates.ElementSpacer:
		height := el.Number("height", 20)
		return fmt.Sprintf(`<div class="spacer" style="height:%spx"></div>`, trimFloat(height))
	case templates.ElementSignature:
		return renderSignature(el, ctx)
	default:
		e.logger.Warn("skipping unknown element type",
			slog.String("element_id", el.ID),
			slog.String("type", string(el.Type)))
		return ""
	}
}

// Substitute replaces {{dot.path}} placeholders against the lookup table.
// Unresolved placeholders render as the empty string, never as an error and
// never as the literal token.
func Substitute(text string, lookup map[string]string) string {
	escaped := html.EscapeString(text)
	return placeholderRe.ReplaceAllStringFunc(escaped, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		return html.EscapeString(lookup[path])
	})
}

func renderHeader(el templates.Element, lookup map[string]string, branding templates.Branding) string {
	title := Substitute(el.Text("title", "QUOTATION"), lookup)
	subtitle := Substitute(el.Text("subtitle", ""), lookup)
	out := `<header class="doc-header"` + styleAttr(el) + `>`
	if branding.LogoURL != "" && el.Flag("showLogo", true) {
		out += `<img class="logo" src="` + html.EscapeString(branding.LogoURL) + `" alt="logo">`
	}
	out += `<h1>` + title + `</h1>`
	if subtitle != "" {
		out += `<p class="subtitle">` + subtitle + `</p>`
	}
	return out + `</header>`
}

func renderParty(el templates.Element, class, title, name, company, address, phone, email string) string {
	var b strings.Builder
	b.WriteString(`<section class="party ` + class + `"` + styleAttr(el) + `>`)
	b.WriteString(`<h3>` + html.EscapeString(title) + `</h3>`)
	if name != "" {
		b.WriteString(`<p class="party-name">` + html.EscapeString(name) + `</p>`)
	}
	if company != "" {
		b.WriteString(`<p>` + html.EscapeString(company) + `</p>`)
	}
	if address != "" {
		b.WriteString(`<p>` + html.EscapeString(address) + `</p>`)
	}
	if phone != "" {
		b.WriteString(`<p>` + html.EscapeString(phone) + `</p>`)
	}
	if email != "" {
		b.WriteString(`<p>` + html.EscapeString(email) + `</p>`)
	}
	b.WriteString(`</section>`)
	return b.String()
}

func renderQuotationInfo(el templates.Element, ctx *Context) string {
	rows := []struct{ label, value string }{
		{"Quotation No.", ctx.Quotation.Number},
		{"Date", ctx.Quotation.Date},
		{"Valid Until", ctx.Quotation.ValidUntil},
		{"Payment Terms", ctx.Quotation.PaymentTerms},
	}
	var b strings.Builder
	b.WriteString(`<section class="quotation-info"` + styleAttr(el) + `>`)
	b.WriteString(`<h3>` + html.EscapeString(el.Text("title", "Quotation Details")) + `</h3><table class="kv">`)
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		b.WriteString(`<tr><td class="kv-label">` + html.EscapeString(row.label) +
			`</td><td>` + html.EscapeString(row.value) + `</td></tr>`)
	}
	b.WriteString(`</table></section>`)
	return b.String()
}

func renderJobDetails(el templates.Element, ctx *Context) string {
	rows := []struct{ label, value string }{
		{"Machine Type", ctx.Quotation.MachineType},
		{"Duration", ctx.Quotation.Duration},
		{"Payment Terms", ctx.Quotation.PaymentTerms},
	}
	var b strings.Builder
	b.WriteString(`<section class="job-details"` + styleAttr(el) + `>`)
	b.WriteString(`<h3>` + html.EscapeString(el.Text("title", "Job Details")) + `</h3><table class="kv">`)
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		b.WriteString(`<tr><td class="kv-label">` + html.EscapeString(row.label) +
			`</td><td>` + html.EscapeString(row.value) + `</td></tr>`)
	}
	b.WriteString(`</table></section>`)
	return b.String()
}

// itemsColumns is the fixed column order of the items table. Visibility comes
// from the element's column map; a column missing from the map stays visible.
var itemsColumns = []struct {
	key     string
	label   string
	numeric bool
}{
	{"no", "No.", false},
	{"description", "Description", false},
	{"jobType", "Job Type", false},
	{"quantity", "Qty", true},
	{"duration", "Duration", false},
	{"rate", "Rate", true},
	{"rental", "Rental", true},
	{"mobDemob", "Mob/Demob", true},
	{"riskUsage", "Risk & Usage", true},
}

func renderItemsTable(el templates.Element, ctx *Context, pal palette) string {
	visible := el.Columns()
	show := func(key string) bool {
		v, ok := visible[key]
		return !ok || v
	}

	// tableHeaderBg is the one style key the table rule interprets itself.
	headerBg := el.StyleValue("tableHeaderBg", pal.TableHead)

	var b strings.Builder
	b.WriteString(`<section class="items"` + styleAttr(el) + `>`)
	if title := el.Text("title", "Equipment & Services"); title != "" {
		b.WriteString(`<h3>` + html.EscapeString(title) + `</h3>`)
	}
	b.WriteString(`<table class="items-table"><thead><tr>`)
	for _, col := range itemsColumns {
		if !show(col.key) {
			continue
		}
		b.WriteString(`<th style="background:` + html.EscapeString(headerBg) + `">` +
			html.EscapeString(col.label) + `</th>`)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, item := range ctx.Items {
		b.WriteString(`<tr>`)
		for _, col := range itemsColumns {
			if !show(col.key) {
				continue
			}
			b.WriteString(itemCell(col.key, item, ctx))
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></section>`)
	return b.String()
}

func itemCell(key string, item Item, ctx *Context) string {
	switch key {
	case "no":
		return `<td>` + strconv.Itoa(item.No) + `</td>`
	case "description":
		return `<td>` + html.EscapeString(item.Description) + `</td>`
	case "jobType":
		return `<td>` + html.EscapeString(item.JobType) + `</td>`
	case "quantity":
		return `<td class="num">` + trimFloat(item.Quantity) + `</td>`
	case "duration":
		return `<td>` + html.EscapeString(item.Duration) + `</td>`
	case "rate":
		return `<td class="num">` + html.EscapeString(ctx.Money(item.Rate)) + `</td>`
	case "rental":
		return `<td class="num">` + html.EscapeString(ctx.Money(item.Rental)) + `</td>`
	case "mobDemob":
		return `<td class="num">` + html.EscapeString(ctx.Money(item.MobDemob)) + `</td>`
	case "riskUsage":
		return `<td class="num">` + html.EscapeString(ctx.Money(item.RiskUsage)) + `</td>`
	}
	return `<td></td>`
}

func renderChargesTable(el templates.Element, ctx *Context, pal palette) string {
	headerBg := el.StyleValue("tableHeaderBg", pal.TableHead)
	rows := []struct {
		label string
		value float64
	}{
		{"Mobilization / Demobilization", ctx.Totals.MobDemob},
		{"Risk & Usage", ctx.Totals.RiskUsage},
	}
	var b strings.Builder
	b.WriteString(`<section class="charges"` + styleAttr(el) + `>`)
	if title := el.Text("title", "Additional Charges"); title != "" {
		b.WriteString(`<h3>` + html.EscapeString(title) + `</h3>`)
	}
	b.WriteString(`<table class="items-table"><thead><tr>`)
	b.WriteString(`<th style="background:` + html.EscapeString(headerBg) + `">Charge</th>`)
	b.WriteString(`<th style="background:` + html.EscapeString(headerBg) + `">Amount</th>`)
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range rows {
		b.WriteString(`<tr><td>` + html.EscapeString(row.label) + `</td><td class="num">` +
			html.EscapeString(ctx.Money(row.value)) + `</td></tr>`)
	}
	b.WriteString(`</tbody></table></section>`)
	return b.String()
}

func renderTotals(el templates.Element, ctx *Context) string {
	var b strings.Builder
	b.WriteString(`<section class="totals"` + styleAttr(el) + `><table class="totals-table">`)
	if el.Flag("showBreakdown", true) {
		b.WriteString(totalsRow("Rental Charges", ctx.Money(ctx.Totals.Rental), false))
		b.WriteString(totalsRow("Mob/Demob", ctx.Money(ctx.Totals.MobDemob), false))
		b.WriteString(totalsRow("Risk & Usage", ctx.Money(ctx.Totals.RiskUsage), false))
	}
	b.WriteString(totalsRow("Subtotal", ctx.Money(ctx.Totals.Subtotal), false))
	if el.Flag("showTax", true) {
		label := "Tax"
		if ctx.Quotation.TaxRate > 0 {
			label = fmt.Sprintf("Tax (%s%%)", trimFloat(ctx.Quotation.TaxRate))
		}
		b.WriteString(totalsRow(label, ctx.Money(ctx.Totals.Tax), false))
	}
	b.WriteString(totalsRow("Grand Total", ctx.Money(ctx.Totals.Total), true))
	b.WriteString(`</table></section>`)
	return b.String()
}

func totalsRow(label, value string, grand bool) string {
	class := ""
	if grand {
		class = ` class="grand"`
	}
	return `<tr` + class + `><td class="totals-label">` + html.EscapeString(label) +
		`</td><td class="num">` + html.EscapeString(value) + `</td></tr>`
}

func renderTerms(el templates.Element, lookup map[string]string) string {
	body := el.Text("text", "")
	var b strings.Builder
	b.WriteString(`<section class="terms"` + styleAttr(el) + `>`)
	b.WriteString(`<h3>` + html.EscapeString(el.Text("title", "Terms & Conditions")) + `</h3>`)
	if body != "" {
		// Literal line breaks separate bullet points.
		b.WriteString(`<ul>`)
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			b.WriteString(`<li>` + Substitute(line, lookup) + `</li>`)
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</section>`)
	return b.String()
}

func renderFooter(el templates.Element, lookup map[string]string) string {
	text := el.Text("text", "")
	if text == "" {
		return ""
	}
	return `<footer class="doc-footer"` + styleAttr(el) + `><p>` + Substitute(text, lookup) + `</p></footer>`
}

func renderCustomText(el templates.Element, lookup map[string]string) string {
	text := el.Text("text", "")
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<section class="custom-text"` + styleAttr(el) + `>`)
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString(`<p>` + Substitute(para, lookup) + `</p>`)
	}
	b.WriteString(`</section>`)
	return b.String()
}

// renderImage falls back to the branding logo when the element carries no
// source of its own.
func renderImage(el templates.Element, branding templates.Branding) string {
	src := el.Text("src", "")
	if src == "" {
		src = branding.LogoURL
	}
	if src == "" {
		return ""
	}
	alt := el.Text("alt", "")
	return `<div class="image"` + styleAttr(el) + `><img src="` + html.EscapeString(src) +
		`" alt="` + html.EscapeString(alt) + `"></div>`
}

func renderSignature(el templates.Element, ctx *Context) string {
	label := el.Text("label", "Authorized Signatory")
	name := el.Text("name", ctx.Company.Name)
	var b strings.Builder
	b.WriteString(`<section class="signature"` + styleAttr(el) + `>`)
	b.WriteString(`<div class="signature-line"></div>`)
	if name != "" {
		b.WriteString(`<p class="signature-name">` + html.EscapeString(name) + `</p>`)
	}
	b.WriteString(`<p class="signature-label">` + html.EscapeString(label) + `</p>`)
	b.WriteString(`</section>`)
	return b.String()
}

var styleKeyRe = regexp.MustCompile(`[A-Z]`)

// styleAttr passes the element's style bag through as inline CSS. Keys are
// camelCase in storage; tableHeaderBg is consumed by the table rules and
// excluded here.
func styleAttr(el templates.Element) string {
	if len(el.Style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(el.Style))
	for k := range el.Style {
		if k == "tableHeaderBg" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		value := styleString(el.Style[k])
		if value == "" {
			continue
		}
		prop := styleKeyRe.ReplaceAllStringFunc(k, func(m string) string {
			return "-" + strings.ToLower(m)
		})
		b.WriteString(prop + ":" + value + ";")
	}
	if b.Len() == 0 {
		return ""
	}
	return ` style="` + html.EscapeString(b.String()) + `"`
}

func styleString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return trimFloat(val) + "px"
	case bool:
		if val {
			return "true"
		}
	}
	return ""
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func documentCSS(pal palette) string {
	var b strings.Builder
	b.WriteString("body{font-family:'Helvetica Neue',Arial,sans-serif;color:" + pal.Text + ";margin:0;font-size:13px;line-height:1.5;}\n")
	b.WriteString(".document{max-width:800px;margin:0 auto;padding:24px;}\n")
	b.WriteString(".doc-header h1{color:" + pal.Primary + ";font-size:26px;margin:0 0 4px;}\n")
	b.WriteString(".doc-header .subtitle{color:" + pal.Muted + ";margin:0 0 16px;}\n")
	b.WriteString(".doc-header img.logo{max-height:60px;margin-bottom:8px;}\n")
	b.WriteString("h3{color:" + pal.Secondary + ";font-size:14px;text-transform:uppercase;letter-spacing:.04em;margin:18px 0 6px;}\n")
	b.WriteString(".party p{margin:2px 0;}\n")
	b.WriteString(".party-name{font-weight:bold;}\n")
	b.WriteString("table.kv{border-collapse:collapse;}\n")
	b.WriteString("table.kv td{padding:2px 12px 2px 0;}\n")
	b.WriteString(".kv-label{color:" + pal.Muted + ";}\n")
	b.WriteString("table.items-table{width:100%;border-collapse:collapse;margin:8px 0 16px;}\n")
	b.WriteString("table.items-table th{color:#ffffff;text-align:left;padding:6px 8px;font-size:12px;}\n")
	b.WriteString("table.items-table td{border-bottom:1px solid #e5e7eb;padding:6px 8px;}\n")
	b.WriteString("td.num{text-align:right;white-space:nowrap;}\n")
	b.WriteString("table.totals-table{margin-left:auto;border-collapse:collapse;min-width:280px;}\n")
	b.WriteString("table.totals-table td{padding:4px 8px;}\n")
	b.WriteString(".totals-label{color:" + pal.Muted + ";}\n")
	b.WriteString("tr.grand td{border-top:2px solid " + pal.Primary + ";font-weight:bold;color:" + pal.Primary + ";}\n")
	b.WriteString(".terms ul{margin:4px 0;padding-left:18px;}\n")
	b.WriteString(".terms li{margin:2px 0;}\n")
	b.WriteString(".doc-footer{margin-top:24px;color:" + pal.Muted + ";font-size:11px;border-top:1px solid #e5e7eb;padding-top:8px;}\n")
	b.WriteString("hr.divider{border:none;border-top:1px solid " + pal.Accent + ";margin:12px 0;}\n")
	b.WriteString(".signature{margin-top:40px;width:240px;}\n")
	b.WriteString(".signature-line{border-bottom:1px solid " + pal.Text + ";height:36px;}\n")
	b.WriteString(".signature-name{font-weight:bold;margin:6px 0 0;}\n")
	b.WriteString(".signature-label{color:" + pal.Muted + ";margin:0;font-size:11px;}\n")
	b.WriteString("@media print{.document{padding:0;}}\n")
	return b.String()
}
