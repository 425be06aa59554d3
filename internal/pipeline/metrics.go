package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors fed during a run. A nil *Metrics
// records nothing, so the pipeline never guards its calls.
type Metrics struct {
	tablesRead      *prometheus.CounterVec
	rowsRead        *prometheus.CounterVec
	samplesExcluded *prometheus.CounterVec
	missingValues   *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewMetrics builds the run collectors and registers them on reg. A nil
// registerer yields a nil Metrics, which disables collection.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		tablesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "tables_read_total",
			Help:      "Measurement tables fetched from the archive.",
		}, []string{"product", "table"}),
		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "rows_read_total",
			Help:      "Rows decoded from fetched tables.",
		}, []string{"table"}),
		samplesExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "samples_excluded_total",
			Help:      "Input samples discarded before estimation.",
		}, []string{"stage", "reason"}),
		missingValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "missing_values_total",
			Help:      "Missing markers carried in stage outputs.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carboncore",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of whole runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.tablesRead,
		m.rowsRead,
		m.samplesExcluded,
		m.missingValues,
		m.runs,
		m.runDuration,
	)
	return m
}

// TableRead records one fetched table and its decoded row count.
func (m *Metrics) TableRead(product, table string, rows int) {
	if m == nil {
		return
	}
	m.tablesRead.WithLabelValues(product, table).Inc()
	m.rowsRead.WithLabelValues(table).Add(float64(rows))
}

// SamplesExcluded counts inputs a stage discarded before estimating.
func (m *Metrics) SamplesExcluded(stage, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.samplesExcluded.WithLabelValues(stage, reason).Add(float64(n))
}

// MissingValues counts missing markers in a stage output.
func (m *Metrics) MissingValues(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.missingValues.WithLabelValues(stage).Add(float64(n))
}

// RunObserved records one finished run and its wall-clock duration.
func (m *Metrics) RunObserved(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}
