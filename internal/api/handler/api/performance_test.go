package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/perftrack/internal/storage/archive"
)

func getPerformance(h *PerformanceHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/performance", nil)
	w := httptest.NewRecorder()
	h.Get(w, req)
	return w
}

func TestPerformanceHandler_Get(t *testing.T) {
	mem := archive.NewMemory()
	doc := `{"equity_curve":{"dates":["2025-01-03"],"equity_pct":[-10.18]},"last_update":"2025-02-01","sp500_phoenix":{"nb_trades":1}}`
	if err := mem.Write(context.Background(), "performance_summary.json", []byte(doc)); err != nil {
		t.Fatal(err)
	}

	w := getPerformance(NewPerformanceHandler(mem, "performance_summary.json"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if string(body.Data["last_update"]) != `"2025-02-01"` {
		t.Errorf("unexpected last_update %s", body.Data["last_update"])
	}
	if _, ok := body.Data["sp500_phoenix"]; !ok {
		t.Error("expected group section in data")
	}
}

func TestPerformanceHandler_Missing(t *testing.T) {
	w := getPerformance(NewPerformanceHandler(archive.NewMemory(), "performance_summary.json"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPerformanceHandler_Corrupt(t *testing.T) {
	mem := archive.NewMemory()
	_ = mem.Write(context.Background(), "performance_summary.json", []byte("{"))

	w := getPerformance(NewPerformanceHandler(mem, "performance_summary.json"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
