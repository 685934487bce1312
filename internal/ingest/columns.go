// Package ingest turns loosely structured spreadsheet rows into operations.
package ingest

import "strings"

// Field is a target field of core.Operation filled from a row.
type Field string

const (
	FieldInvoiceNumber Field = "invoiceNumber"
	FieldTeam          Field = "team"
	FieldMembers       Field = "members"
	FieldRevenue       Field = "revenue"
	FieldMaterialCost  Field = "materialCost"
	FieldFuelCost      Field = "fuelCost"
	FieldProfit        Field = "profit"
	FieldIsPaid        Field = "isPaid"
	FieldDate          Field = "date"
)

// ColumnMap lists, for each field, the column names to try in order.
type ColumnMap map[Field][]string

// DefaultColumns matches the exported ledger sheets, Russian headers first.
var DefaultColumns = ColumnMap{
	FieldInvoiceNumber: {"№ счета", "Invoice", "Invoice Number"},
	FieldTeam:          {"Команда", "Team"},
	FieldMembers:       {"Группа", "Members"},
	FieldRevenue:       {"Сумма счета", "Revenue"},
	FieldMaterialCost:  {"Материалы", "Materials", "Material Cost"},
	FieldFuelCost:      {"Бензин/ износ машины", "Бензин", "Fuel", "Fuel Cost"},
	FieldProfit:        {"Рентабельность", "Profit"},
	FieldIsPaid:        {"Оплачено", "Paid"},
	FieldDate:          {"Дата", "Date"},
}

// Row is one record keyed by trimmed column name.
type Row struct {
	Line   int
	Values map[string]string
}

// Resolve returns the first non-blank value among the candidate columns of f.
func (m ColumnMap) Resolve(row Row, f Field) (string, bool) {
	for _, col := range m[f] {
		if v := strings.TrimSpace(row.Values[col]); v != "" {
			return v, true
		}
	}
	return "", false
}

// NewRow zips a header with a record. Missing trailing cells are blank;
// extra cells without a header are dropped.
func NewRow(line int, header, record []string) Row {
	values := make(map[string]string, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i < len(record) {
			values[col] = record[i]
		} else {
			values[col] = ""
		}
	}
	return Row{Line: line, Values: values}
}

// CleanHeader trims column names and drops a leading UTF-8 BOM.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
