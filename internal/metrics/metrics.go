// Package metrics exposes the tracer's own operational instrumentation —
// not the trace content itself, but how the tracer is behaving: commit
// throughput, drops, log utilization, commit latency, and the number of
// registered tensors (no disk-offset-map metric). Modeled on the
// teacher's internal/metrics package, trimmed to what this tracer has to
// report.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsCommittedTotal counts records successfully committed to the
	// shared log.
	RecordsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensortrace_records_committed_total",
		Help: "Total number of operation records committed to the trace log",
	})

	// RecordsDroppedTotal counts records dropped because the log was at
	// capacity.
	RecordsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensortrace_records_dropped_total",
		Help: "Total number of operation records dropped due to log capacity",
	})

	// LogUtilization reports the fraction of the trace log's capacity
	// currently committed (0.0 to 1.0).
	LogUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tensortrace_log_utilization",
		Help: "Fraction of trace log capacity currently committed",
	})

	// RegistrySize reports the number of registered tensors.
	RegistrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tensortrace_registry_size",
		Help: "Number of tensors currently registered",
	})

	// CommitDuration records how long a ring's memcpy-into-reservation
	// commit took.
	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tensortrace_commit_duration_seconds",
		Help:    "Time spent committing a thread-local batch into the shared log",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	})
)

// RecordCommit updates commit-path counters after a batch commit attempt.
func RecordCommit(ok bool, recordCount int, duration time.Duration) {
	if ok {
		RecordsCommittedTotal.Add(float64(recordCount))
	} else {
		RecordsDroppedTotal.Add(float64(recordCount))
	}
	CommitDuration.Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
