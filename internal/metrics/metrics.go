package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Run metrics
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	transitions      *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	updateFailures   prometheus.Counter
	fetchesTotal     *prometheus.CounterVec
	groupTrades      *prometheus.GaugeVec
	groupExpectancyR *prometheus.GaugeVec
	lastRunTimestamp prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perftrack_runs_total",
			Help: "Total number of performance runs",
		},
		[]string{"status"},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perftrack_run_duration_seconds",
			Help:    "Performance run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	r.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perftrack_signal_transitions_total",
			Help: "Signals written back, by resulting status",
		},
		[]string{"status"},
	)
	r.skipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perftrack_signals_skipped_total",
			Help: "Signals left untouched by a run, by reason",
		},
		[]string{"reason"},
	)
	r.updateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "perftrack_store_update_failures_total",
			Help: "Signal updates the store rejected",
		},
	)
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perftrack_history_fetches_total",
			Help: "Price history fetches, by provider and outcome",
		},
		[]string{"provider", "status"},
	)
	r.groupTrades = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perftrack_group_closed_trades",
			Help: "Closed trades per group in the last summary",
		},
		[]string{"group"},
	)
	r.groupExpectancyR = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perftrack_group_expectancy_r",
			Help: "Expectancy in R per group in the last summary",
		},
		[]string{"group"},
	)
	r.lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "perftrack_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.transitions)
	reg.MustRegister(r.skipped)
	reg.MustRegister(r.updateFailures)
	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.groupTrades)
	reg.MustRegister(r.groupExpectancyR)
	reg.MustRegister(r.lastRunTimestamp)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRun records a run completion. status is "success" or "error".
func (r *Registry) RecordRun(status string, duration float64, finishedUnix float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
	if status == "success" {
		r.lastRunTimestamp.Set(finishedUnix)
	}
}

// RecordTransition records a signal written back with the given status.
func (r *Registry) RecordTransition(status string) {
	r.transitions.WithLabelValues(status).Inc()
}

// RecordSkip records a signal the run could not advance.
func (r *Registry) RecordSkip(reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

// RecordUpdateFailure records a failed store update.
func (r *Registry) RecordUpdateFailure() {
	r.updateFailures.Inc()
}

// RecordFetch records a price history fetch.
func (r *Registry) RecordFetch(provider string, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	r.fetchesTotal.WithLabelValues(provider, status).Inc()
}

// SetGroupStats publishes the headline numbers of one summary group.
func (r *Registry) SetGroupStats(group string, trades int, expectancyR float64) {
	r.groupTrades.WithLabelValues(group).Set(float64(trades))
	r.groupExpectancyR.WithLabelValues(group).Set(expectancyR)
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
