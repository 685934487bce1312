package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"teamledger/internal/core"
)

var fixedNow = time.Date(2026, 4, 2, 15, 30, 0, 0, time.UTC)

func testNormalizer() *Normalizer {
	n := NewNormalizer(DefaultYear)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestInferDate(t *testing.T) {
	tests := []struct {
		invoice string
		want    string
		ok      bool
	}{
		{"INV-01.12.25", "2025-12-01", true},
		{"INV-5.3", "2025-03-05", true},
		{"№ 7.11.2024", "2024-11-07", true},
		{"12.6 Kyiv", "2025-06-12", true},
		{"INV-042", "", false},
		{"", "", false},
		{"INV-31.02", "", false},
		{"INV-10.13", "", false},
		{"INV-0.5", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.invoice, func(t *testing.T) {
			got, ok := InferDate(tt.invoice, 2025)
			if ok != tt.ok {
				t.Fatalf("InferDate(%q) ok = %v, want %v", tt.invoice, ok, tt.ok)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("InferDate(%q) = %s, want %s", tt.invoice, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestInferDateHonoursDefaultYear(t *testing.T) {
	got, ok := InferDate("INV-5.3", 2031)
	if !ok || got.Year() != 2031 {
		t.Errorf("got %v ok=%v, want year 2031", got, ok)
	}
}

func TestNormalizeRussianHeaders(t *testing.T) {
	row := NewRow(2,
		[]string{"№ счета", "Группа", "Сумма счета", "Материалы", "Бензин/ износ машины", "Рентабельность", "Команда"},
		[]string{"INV-01.12.25", "Ivan, Oleg", "1 234,50 €", "0", "€ 12,50", "1100", "North"},
	)

	op, err := testNormalizer().Normalize(row)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if op.InvoiceNumber != "INV-01.12.25" || op.Members != "Ivan, Oleg" {
		t.Errorf("text fields = %+v", op)
	}
	if op.Team == nil || *op.Team != "North" {
		t.Errorf("team = %v", op.Team)
	}
	if !op.Revenue.Equal(decimal.RequireFromString("1234.5")) {
		t.Errorf("revenue = %s", op.Revenue)
	}
	if !op.FuelCost.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("fuel = %s", op.FuelCost)
	}
	if op.MaterialCost.Valid {
		t.Errorf("zero material cost should be null, got %s", op.MaterialCost.Decimal)
	}
	if op.Date.Format("2006-01-02") != "2025-12-01" {
		t.Errorf("date = %s", op.Date)
	}
	if op.IsPaid {
		t.Errorf("isPaid should default to false")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	row := NewRow(3, []string{"Invoice", "Revenue", "Materials", "Бензин", "Team"},
		[]string{"INV-042", "n/a", "abc", "7", "  "})

	op, err := testNormalizer().Normalize(row)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !op.Revenue.IsZero() || !op.Profit.IsZero() {
		t.Errorf("unparseable required amounts should be 0, got revenue=%s profit=%s", op.Revenue, op.Profit)
	}
	if op.MaterialCost.Valid {
		t.Errorf("unparseable material cost should be null")
	}
	if !op.FuelCost.Equal(decimal.NewFromInt(7)) {
		t.Errorf("fuel fallback column not used: %s", op.FuelCost)
	}
	if op.Team != nil {
		t.Errorf("blank team should be nil")
	}
	if !op.Date.Equal(fixedNow) {
		t.Errorf("date without pattern should stay at ingestion time, got %s", op.Date)
	}
}

func TestNormalizeExplicitDateWins(t *testing.T) {
	row := NewRow(4, []string{"Invoice", "Date", "Paid"}, []string{"INV-01.12.25", "15.03.2025", "да"})

	op, err := testNormalizer().Normalize(row)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if op.Date.Format("2006-01-02") != "2025-03-15" {
		t.Errorf("date = %s, want explicit 2025-03-15", op.Date)
	}
	if !op.IsPaid {
		t.Errorf("isPaid should be true")
	}
}

func TestNormalizeMissingInvoice(t *testing.T) {
	row := NewRow(5, []string{"№ счета", "Сумма счета"}, []string{" ", "100"})
	_, err := testNormalizer().Normalize(row)
	if !errors.Is(err, core.ErrMissingInvoiceNumber) {
		t.Errorf("err = %v, want ErrMissingInvoiceNumber", err)
	}
}

func TestResolveOrder(t *testing.T) {
	row := Row{Values: map[string]string{"№ счета": "", "Invoice": "B", "Invoice Number": "C"}}
	got, ok := DefaultColumns.Resolve(row, FieldInvoiceNumber)
	if !ok || got != "B" {
		t.Errorf("Resolve = %q, %v; want first non-blank candidate", got, ok)
	}
	if _, ok := DefaultColumns.Resolve(row, FieldTeam); ok {
		t.Errorf("absent column should not resolve")
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"TRUE", "1", "yes", "Да", "x", "✓"} {
		if !ParseBool(s) {
			t.Errorf("ParseBool(%q) = false", s)
		}
	}
	for _, s := range []string{"", "false", "0", "нет", "maybe"} {
		if ParseBool(s) {
			t.Errorf("ParseBool(%q) = true", s)
		}
	}
}
