package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"teamledger/internal/core"
	"teamledger/internal/log"
	"teamledger/internal/services"
	"teamledger/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Format: "text", Component: log.ComponentHTTP, Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := services.NewOperationService(store, nil, services.Options{}, quietLogger())
	opts.Logger = quietLogger()
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

const validOperation = `{
	"invoiceNumber": "INV-01.03.25",
	"team": "Alpha",
	"members": "Ivan, Petr",
	"date": "2025-03-01T10:00:00Z",
	"revenue": 1500.5,
	"materialCost": 199.25,
	"fuelCost": 100,
	"isPaid": true,
	"profit": 1201.25
}`

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["timestamp"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestCreateOperationEchoesFields(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/operations", validOperation)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var sent, got map[string]any
	if err := json.Unmarshal([]byte(validOperation), &sent); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	for k, v := range sent {
		if !reflect.DeepEqual(got[k], v) {
			t.Errorf("%s: sent %v, got %v", k, v, got[k])
		}
	}
	if id, _ := got["id"].(string); id == "" {
		t.Error("missing generated id")
	}

	ops, _ := store.ListOperations(context.Background())
	if len(ops) != 1 {
		t.Fatalf("expected 1 stored operation, got %d", len(ops))
	}
}

func TestCreateOperationDefaults(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	body := `{"invoiceNumber":"INV-7","members":"Anna","date":"2025-03-02","revenue":10,"fuelCost":1,"profit":9,"team":""}`
	rec := do(t, srv, http.MethodPost, "/operations", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if v, ok := got["materialCost"]; !ok || v != nil {
		t.Errorf("materialCost: expected null, got %v", v)
	}
	if got["isPaid"] != false {
		t.Errorf("isPaid: expected false, got %v", got["isPaid"])
	}
	if v, ok := got["team"]; !ok || v != nil {
		t.Errorf("team: expected null, got %v", v)
	}
}

func TestCreateOperationValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing revenue", `{"invoiceNumber":"A","members":"m","date":"2025-03-01","fuelCost":1,"profit":1}`, "Invalid revenue"},
		{"string revenue", `{"invoiceNumber":"A","members":"m","date":"2025-03-01","revenue":"100","fuelCost":1,"profit":1}`, "Invalid revenue"},
		{"missing invoice", `{"members":"m","date":"2025-03-01","revenue":1,"fuelCost":1,"profit":1}`, "Invalid invoiceNumber"},
		{"bad date", `{"invoiceNumber":"A","members":"m","date":"yesterday","revenue":1,"fuelCost":1,"profit":1}`, "Invalid date (expecting ISO string)"},
		{"not json", `{"invoiceNumber":`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, Options{})

			rec := do(t, srv, http.MethodPost, "/operations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", rec.Code)
			}
			if got := decodeError(t, rec); got != tt.wantErr {
				t.Fatalf("error=%q, want %q", got, tt.wantErr)
			}
			ops, _ := store.ListOperations(context.Background())
			if len(ops) != 0 {
				t.Fatalf("nothing should be stored, got %d", len(ops))
			}
		})
	}
}

func TestCreateOperationBodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	big := `{"invoiceNumber":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(t, srv, http.MethodPost, "/operations", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestListOperationsAndTeams(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/operations", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list: status=%d body=%s", rec.Code, rec.Body.String())
	}

	for _, body := range []string{
		`{"invoiceNumber":"1","team":"Beta","members":"m","date":"2025-01-01","revenue":1,"fuelCost":0,"profit":1}`,
		`{"invoiceNumber":"2","team":"Alpha","members":"m","date":"2025-02-01","revenue":1,"fuelCost":0,"profit":1}`,
		`{"invoiceNumber":"3","members":"m","date":"2025-03-01","revenue":1,"fuelCost":0,"profit":1}`,
	} {
		if rec := do(t, srv, http.MethodPost, "/operations", body); rec.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
		}
	}

	rec = do(t, srv, http.MethodGet, "/operations", "")
	var ops []core.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &ops); err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 || ops[0].InvoiceNumber != "3" || ops[2].InvoiceNumber != "1" {
		t.Fatalf("expected newest first, got %+v", ops)
	}

	rec = do(t, srv, http.MethodGet, "/teams", "")
	var teams []string
	if err := json.Unmarshal(rec.Body.Bytes(), &teams); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(teams, []string{"Alpha", "Beta"}) {
		t.Fatalf("unexpected teams %v", teams)
	}
}

func TestDashboard(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/dashboard", "")
	want := `{"period":{"start":"all-time","end":"now"},"totals":{"operations":0,"revenue":0,"profit":0,"expenses":0},"teams":[]}`
	if rec.Code != http.StatusOK || rec.Body.String() != want {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	for _, body := range []string{
		`{"invoiceNumber":"1","team":"A","members":"m","date":"2025-03-01","revenue":100,"fuelCost":10,"profit":90}`,
		`{"invoiceNumber":"2","team":"B","members":"m","date":"2025-03-02","revenue":300,"fuelCost":20,"materialCost":5,"profit":275}`,
		`{"invoiceNumber":"3","team":"C","members":"m","date":"2025-03-03","revenue":200,"fuelCost":0,"profit":200}`,
		`{"invoiceNumber":"4","team":"C","members":"m","date":"2025-04-01","revenue":999,"fuelCost":0,"profit":999}`,
	} {
		if rec := do(t, srv, http.MethodPost, "/operations", body); rec.Code != http.StatusCreated {
			t.Fatalf("create status=%d", rec.Code)
		}
	}

	rec = do(t, srv, http.MethodGet, "/dashboard?startDate=2025-03-01&endDate=2025-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var d core.Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	if d.Period.Start != "2025-03-01" || d.Period.End != "2025-03-31" {
		t.Errorf("period=%+v", d.Period)
	}
	if d.Totals.Operations != 3 || d.Totals.Revenue.String() != "600" || d.Totals.Expenses.String() != "35" {
		t.Errorf("totals=%+v", d.Totals)
	}
	var names []string
	for _, team := range d.Teams {
		names = append(names, team.Name)
	}
	if !reflect.DeepEqual(names, []string{"B", "C", "A"}) {
		t.Errorf("team order=%v", names)
	}
}

func TestDashboardInvalidPeriod(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	tests := []struct {
		query   string
		wantErr string
	}{
		{"startDate=nope", "Invalid startDate"},
		{"endDate=31/12/2025", "Invalid endDate"},
		{"startDate=2025-04-01&endDate=2025-03-01", "startDate must not be after endDate"},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodGet, "/dashboard?"+tt.query, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", tt.query, rec.Code)
		}
		if got := decodeError(t, rec); got != tt.wantErr {
			t.Fatalf("%s: error=%q", tt.query, got)
		}
	}
}

func TestRoutingErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec) != "Route /nope not found" {
		t.Fatalf("404: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodDelete, "/operations", "")
	if rec.Code != http.StatusMethodNotAllowed || decodeError(t, rec) != "Method DELETE not allowed" {
		t.Fatalf("405: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Fatalf("Allow=%q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSAllowedOrigins: []string{"https://ledger.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/operations", nil)
	req.Header.Set("Origin", "https://ledger.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ledger.example" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestRateLimitOnCreate(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})

	if rec := do(t, srv, http.MethodPost, "/operations", validOperation); rec.Code != http.StatusCreated {
		t.Fatalf("first status=%d", rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/operations", validOperation)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	// Reads are not limited.
	if rec := do(t, srv, http.MethodGet, "/operations", ""); rec.Code != http.StatusOK {
		t.Fatalf("read status=%d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	do(t, srv, http.MethodGet, "/health", "")
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `teamledger_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", rec.Body.String())
	}
}

type failingService struct{ err error }

func (f failingService) CreateOperation(context.Context, core.Operation) (core.Operation, error) {
	return core.Operation{}, f.err
}
func (f failingService) ListOperations(context.Context) ([]core.Operation, error) { return nil, f.err }
func (f failingService) ListTeams(context.Context) ([]string, error)              { return nil, f.err }
func (f failingService) Dashboard(context.Context, core.Period) (core.Dashboard, error) {
	return core.Dashboard{}, f.err
}
func (f failingService) Ping(context.Context) error { return f.err }

func TestStoreFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := log.New(log.Config{Format: "json", Component: log.ComponentHTTP, Output: &logs})
	srv := NewServer(":0", failingService{err: errors.New("connection refused")}, Options{Logger: logger})
	defer srv.Shutdown(context.Background())

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/operations", ""},
		{http.MethodGet, "/teams", ""},
		{http.MethodGet, "/dashboard", ""},
		{http.MethodPost, "/operations", validOperation},
	} {
		rec := do(t, srv, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: status=%d", tc.method, tc.path, rec.Code)
		}
		if got := decodeError(t, rec); got != internalErrorMessage {
			t.Fatalf("%s %s: leaked error %q", tc.method, tc.path, got)
		}
	}
	if !strings.Contains(logs.String(), "connection refused") {
		t.Fatal("error detail should be logged")
	}

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rec.Code)
	}
}
