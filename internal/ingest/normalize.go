package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"teamledger/internal/core"
)

// DefaultYear is used when an invoice number carries only day and month.
const DefaultYear = 2025

// D.M or D.M.Y anywhere in the invoice number; Y is two or four digits.
var invoiceDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})(?:\.(\d{4}|\d{2}))?`)

var explicitDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2.1.06",
	"02/01/2006",
}

// Normalizer maps rows onto operations.
type Normalizer struct {
	Columns     ColumnMap
	DefaultYear int
	Now         func() time.Time
}

// NewNormalizer returns a normalizer with the default column table.
func NewNormalizer(defaultYear int) *Normalizer {
	if defaultYear <= 0 {
		defaultYear = DefaultYear
	}
	return &Normalizer{Columns: DefaultColumns, DefaultYear: defaultYear, Now: time.Now}
}

// Normalize builds an operation from row. Unparseable amounts fall back to
// their defaults; only a missing invoice number is an error.
func (n *Normalizer) Normalize(row Row) (core.Operation, error) {
	cols := n.Columns
	if cols == nil {
		cols = DefaultColumns
	}

	invoice, _ := cols.Resolve(row, FieldInvoiceNumber)
	if invoice == "" {
		return core.Operation{}, core.ErrMissingInvoiceNumber
	}

	team, _ := cols.Resolve(row, FieldTeam)
	members, _ := cols.Resolve(row, FieldMembers)
	paid, _ := cols.Resolve(row, FieldIsPaid)

	op := core.Operation{
		InvoiceNumber: invoice,
		Team:          core.TeamPtr(team),
		Members:       members,
		Revenue:       n.amount(cols, row, FieldRevenue),
		FuelCost:      n.amount(cols, row, FieldFuelCost),
		Profit:        n.amount(cols, row, FieldProfit),
		IsPaid:        ParseBool(paid),
	}

	// Zero material cost is recorded as absent.
	if raw, ok := cols.Resolve(row, FieldMaterialCost); ok {
		if d, ok := core.ParseAmount(raw); ok && !d.IsZero() {
			op.MaterialCost = decimal.NewNullDecimal(d)
		}
	}

	op.Date = n.now().UTC()
	if raw, ok := cols.Resolve(row, FieldDate); ok {
		if d, ok := parseExplicitDate(raw); ok {
			op.Date = d
			return op, nil
		}
	}
	if d, ok := InferDate(invoice, n.defaultYear()); ok {
		op.Date = d
	}
	return op, nil
}

func (n *Normalizer) amount(cols ColumnMap, row Row, f Field) decimal.Decimal {
	raw, _ := cols.Resolve(row, f)
	d, ok := core.ParseAmount(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Normalizer) defaultYear() int {
	if n.DefaultYear > 0 {
		return n.DefaultYear
	}
	return DefaultYear
}

// InferDate extracts a D.M[.Y] date from an invoice number such as
// "INV-01.12.25". ok is false when nothing matches or the day/month pair is
// not a real calendar date.
func InferDate(invoice string, defaultYear int) (time.Time, bool) {
	m := invoiceDatePattern.FindStringSubmatch(invoice)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := defaultYear
	switch len(m[3]) {
	case 2:
		yy, _ := strconv.Atoi(m[3])
		year = 2000 + yy
	case 4:
		year, _ = strconv.Atoi(m[3])
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// 31.02 and friends roll over into the next month.
		return time.Time{}, false
	}
	return t, true
}

func parseExplicitDate(s string) (time.Time, bool) {
	for _, layout := range explicitDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseBool reads a spreadsheet checkbox or yes/no cell. Anything
// unrecognised is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "x", "+", "✓", "✔", "да", "оплачено":
		return true
	default:
		return false
	}
}
