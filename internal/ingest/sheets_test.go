package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
)

func TestSheetsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v4/spreadsheets/sheet-123/values/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"range": "Ledger!A1:D4",
			"majorDimension": "ROWS",
			"values": [
				["№ счета", "Команда", "Сумма счета", "Оплачено"],
				["INV-01.12.25", "North", "1 000,00 €", "TRUE"],
				[],
				["INV-5.3", "", 250]
			]
		}`))
	}))
	defer srv.Close()

	src, err := NewSheetsSource(context.Background(),
		SheetsConfig{SpreadsheetID: "sheet-123", Range: "Ledger!A1:D4"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewSheetsSource: %v", err)
	}

	rows, errs := drain(t, src)
	if len(errs) != 0 {
		t.Fatalf("row errors: %v", errs)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Values["Оплачено"] != "TRUE" || rows[1].Values["Сумма счета"] != "250" {
		t.Errorf("rows = %+v", rows)
	}
	if rows[1].Line != 4 {
		t.Errorf("line = %d, want 4", rows[1].Line)
	}

	op, err := testNormalizer().Normalize(rows[0])
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !op.IsPaid || op.Revenue.String() != "1000" {
		t.Errorf("op = %+v", op)
	}
}

func TestNewSheetsSourceValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewSheetsSource(ctx, SheetsConfig{Range: "A1:B2"}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := NewSheetsSource(ctx, SheetsConfig{SpreadsheetID: "x"}); err == nil {
		t.Error("expected error for missing range")
	}
	if _, err := NewSheetsSource(ctx, SheetsConfig{SpreadsheetID: "x", Range: "A1:B2"}); err == nil {
		t.Error("expected error for missing credentials")
	}
}
