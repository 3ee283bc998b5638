package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serveLogged runs req through LoggingMiddleware and returns the decoded log line.
func serveLogged(t *testing.T, req *http.Request, status int) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.InfoLevel))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	w := httptest.NewRecorder()
	LoggingMiddleware(logger)(handler).ServeHTTP(w, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v, log: %s", err, buf.String())
	}
	return entry, w
}

func TestLoggingMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/signals", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	entry, _ := serveLogged(t, req, http.StatusNotFound)

	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/api/signals" {
		t.Errorf("expected path /api/signals, got %v", entry["path"])
	}
	if entry["status"].(float64) != 404 {
		t.Errorf("expected status 404, got %v", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms in log entry")
	}
	if entry["client_ip"] != "192.168.1.1:12345" {
		t.Errorf("expected client_ip 192.168.1.1:12345, got %v", entry["client_ip"])
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	entry, w := serveLogged(t, httptest.NewRequest("GET", "/test", nil), http.StatusOK)

	requestID := w.Header().Get("X-Request-ID")
	if requestID == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if entry["request_id"] != requestID {
		t.Errorf("expected request_id %s, got %v", requestID, entry["request_id"])
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "abc")
	_, w = serveLogged(t, req, http.StatusOK)
	if w.Header().Get("X-Request-ID") != "abc" {
		t.Error("incoming request id should be kept")
	}
}

func TestLoggingMiddleware_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.2")
	req.RemoteAddr = "10.0.0.1:54321"

	entry, _ := serveLogged(t, req, http.StatusOK)

	if entry["client_ip"] != "203.0.113.50" {
		t.Errorf("expected client_ip 203.0.113.50, got %v", entry["client_ip"])
	}
}
