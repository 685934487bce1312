package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Payload(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Payload(math.NaN()).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
	if w.Body.String() != `{"error":"Internal server error"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantBody   string
		wantHeader [2]string
	}{
		{"bad request", BadRequestError("Invalid revenue"), 400, `{"error":"Invalid revenue"}`, [2]string{}},
		{"not found", NotFoundError("/x"), 404, `{"error":"Route /x not found"}`, [2]string{}},
		{"method", MethodNotAllowedError("PUT", []string{"GET", "POST"}), 405, `{"error":"Method PUT not allowed"}`, [2]string{"Allow", "GET, POST"}},
		{"too many", TooManyRequestsError(0), 429, `{"error":"Rate limit exceeded. Please try again later."}`, [2]string{"Retry-After", "60"}},
		{"internal", InternalServerError(), 500, `{"error":"Internal server error"}`, [2]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantHeader[0] != "" && w.Header().Get(tt.wantHeader[0]) != tt.wantHeader[1] {
				t.Errorf("%s = %q, want %q", tt.wantHeader[0], w.Header().Get(tt.wantHeader[0]), tt.wantHeader[1])
			}
		})
	}
}
