package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// family gathers reg and returns the named metric family, or nil.
func family(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
	var _ prometheus.Gatherer = reg
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/test", tt.status, 0.01)

			mf := family(t, reg, "http_requests_total")
			if mf == nil || labelValue(mf.GetMetric()[0], "status") != tt.expected {
				t.Errorf("expected status label %s for status code %d", tt.expected, tt.status)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	mf := family(t, reg, "http_requests_in_flight")
	if mf == nil {
		t.Fatal("expected http_requests_in_flight metric")
	}
	if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("expected in-flight gauge to be 1, got %v", v)
	}
}

func TestRegistry_RecordRun(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRun("success", 2.5, 1700000000)
	reg.RecordRun("error", 0.5, 1700000100)

	runs := family(t, reg, "perftrack_runs_total")
	if runs == nil || len(runs.GetMetric()) != 2 {
		t.Fatalf("expected two status series, got %v", runs)
	}

	hist := family(t, reg, "perftrack_run_duration_seconds")
	if hist.GetMetric()[0].GetHistogram().GetSampleCount() != 2 {
		t.Error("expected two duration samples")
	}

	last := family(t, reg, "perftrack_last_run_timestamp_seconds")
	if v := last.GetMetric()[0].GetGauge().GetValue(); v != 1700000000 {
		t.Errorf("failed runs must not move the last-run timestamp, got %v", v)
	}
}

func TestRegistry_SignalCounters(t *testing.T) {
	reg := NewRegistry()

	reg.RecordTransition("CLOSED")
	reg.RecordTransition("CLOSED")
	reg.RecordSkip("no_data")
	reg.RecordUpdateFailure()
	reg.RecordFetch("yahoo", true)
	reg.RecordFetch("yahoo", false)

	tr := family(t, reg, "perftrack_signal_transitions_total")
	if tr == nil || tr.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("expected 2 CLOSED transitions, got %v", tr)
	}
	if mf := family(t, reg, "perftrack_signals_skipped_total"); labelValue(mf.GetMetric()[0], "reason") != "no_data" {
		t.Error("expected no_data skip reason")
	}
	if mf := family(t, reg, "perftrack_store_update_failures_total"); mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Error("expected one update failure")
	}
	if mf := family(t, reg, "perftrack_history_fetches_total"); len(mf.GetMetric()) != 2 {
		t.Error("expected success and error fetch series")
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.SetGroupStats("sp500_phoenix", 12, 0.42)

	path := filepath.Join(t.TempDir(), "perftrack.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `perftrack_group_expectancy_r{group="sp500_phoenix"} 0.42`) {
		t.Errorf("textfile missing group gauge:\n%s", data)
	}
}
