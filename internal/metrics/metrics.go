// Package metrics holds the Prometheus collectors for import runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records import-run metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Recorder backed by its own registry, including Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envelopes",
			Name:      "import_runs_total",
			Help:      "Import and sync runs by source and final status.",
		}, []string{"source", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "envelopes",
			Name:      "imported_records_total",
			Help:      "Records created by import and sync runs.",
		}, []string{"source", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "envelopes",
			Name:      "import_duration_seconds",
			Help:      "Wall time of import and sync runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	r.registry.MustRegister(
		r.runs, r.records, r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Run describes one finished run.
type Run struct {
	Source       string
	Status       string
	Accounts     int
	Transactions int
	Categories   int
	Elapsed      time.Duration
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(run Run) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(run.Source, run.Status).Inc()
	r.records.WithLabelValues(run.Source, "account").Add(float64(run.Accounts))
	r.records.WithLabelValues(run.Source, "transaction").Add(float64(run.Transactions))
	r.records.WithLabelValues(run.Source, "category").Add(float64(run.Categories))
	r.duration.WithLabelValues(run.Source).Observe(run.Elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
