package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestMiddleware_KeepsValidIncomingID(t *testing.T) {
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		in   string
		keep bool
	}{
		{"abc-123", true},
		{"bad id with spaces", false},
		{strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.in)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get(HeaderRequestID) == tt.in; got != tt.keep {
			t.Errorf("incoming %q kept = %v, want %v", tt.in, got, tt.keep)
		}
	}
}

func TestMiddleware_ObservesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	var method, route string
	var status int
	h := NewMiddleware(nil, func(m, r string, s int, _ time.Duration) {
		method, route, status = m, r, s
	}).Middleware(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bills/42", nil))
	if method != http.MethodGet || route != "GET /api/bills/{id}" || status != http.StatusTeapot {
		t.Errorf("observed %s %q %d", method, route, status)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if route != "unmatched" || status != http.StatusNotFound {
		t.Errorf("observed %q %d for unmatched path", route, status)
	}
}

func TestRecordRoute_ThroughCopyingMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/instances/{id}/toggle-paid", func(w http.ResponseWriter, r *http.Request) {
		RecordRoute(r)
	})
	copying := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(r.Context()))
	})

	var route string
	h := NewMiddleware(nil, func(_, r string, _ int, _ time.Duration) { route = r }).Middleware(copying)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/instances/7/toggle-paid", nil))

	if route != "POST /api/instances/{id}/toggle-paid" {
		t.Errorf("route = %q", route)
	}
}
