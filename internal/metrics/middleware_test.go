package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware(t *testing.T) {
	reg := NewRegistry()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/api/performance", nil)
	w := httptest.NewRecorder()
	HTTPMiddleware(reg)(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if family(t, reg, "http_requests_total") == nil {
		t.Error("expected http_requests_total to be recorded")
	}
	if family(t, reg, "http_request_duration_seconds") == nil {
		t.Error("expected http_request_duration_seconds to be recorded")
	}
}

func TestHTTPMiddleware_TracksInFlight(t *testing.T) {
	reg := NewRegistry()

	inFlightDuringRequest := float64(-1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlightDuringRequest = family(t, reg, "http_requests_in_flight").GetMetric()[0].GetGauge().GetValue()
		w.WriteHeader(http.StatusOK)
	})

	HTTPMiddleware(reg)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	if inFlightDuringRequest != 1 {
		t.Errorf("expected in-flight to be 1 during request, got %v", inFlightDuringRequest)
	}
	if v := family(t, reg, "http_requests_in_flight").GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("expected in-flight to be 0 after request, got %v", v)
	}
}

func TestHTTPMiddleware_CapturesStatusCode(t *testing.T) {
	reg := NewRegistry()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	HTTPMiddleware(reg)(handler).ServeHTTP(w, httptest.NewRequest("GET", "/api/signals/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	mf := family(t, reg, "http_requests_total")
	if got := labelValue(mf.GetMetric()[0], "status"); got != "4xx" {
		t.Errorf("expected status label 4xx, got %s", got)
	}
}

func TestHTTPMiddleware_LabelsByPattern(t *testing.T) {
	reg := NewRegistry()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// The mux sets the pattern on the request it hands to the handler.
	mux := http.NewServeMux()
	mux.Handle("GET /api/signals/{id}", HTTPMiddleware(reg)(handler))

	for _, id := range []string{"a", "b"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/signals/"+id, nil))
	}

	mf := family(t, reg, "http_requests_total")
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one series, got %d", len(mf.GetMetric()))
	}
	if got := labelValue(mf.GetMetric()[0], "path"); got != "GET /api/signals/{id}" {
		t.Errorf("path label = %q", got)
	}
}
