// Package metrics exposes Prometheus metrics for the query facade and the
// scanner.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xtxerr/etos/internal/errors"
)

// Query outcomes. The set is closed to keep label cardinality low.
const (
	OutcomeOK               = "ok"
	OutcomeEmpty            = "empty"
	OutcomeMissingParameter = "missing_parameter"
	OutcomeNotFound         = "not_found"
	OutcomeTimeout          = "timeout"
	OutcomeCorrupt          = "corrupt"
	OutcomeInvalidDate      = "invalid_date"
	OutcomeSuperseded       = "superseded"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Metrics holds the query engine metrics. A nil *Metrics records nothing.
type Metrics struct {
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	filesScanned    prometheus.Counter
	filesPruned     prometheus.Counter
	filesSkipped    prometheus.Counter
	rowGroupsPruned prometheus.Counter
	rowsMatched     prometheus.Counter
	sharedQueries   *prometheus.CounterVec
}

// New creates the metrics and registers them on registerer. A nil registerer
// uses prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etos_queries_total",
			Help: "Facade queries by operation and outcome.",
		}, []string{"op", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etos_query_duration_seconds",
			Help:    "Facade query latency by operation.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
		filesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etos_scan_files_total",
			Help: "Partition files read by the scanner.",
		}),
		filesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etos_scan_files_pruned_total",
			Help: "Partition files skipped by directory pruning.",
		}),
		filesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etos_scan_files_skipped_total",
			Help: "Unreadable partition files skipped in skip-and-continue mode.",
		}),
		rowGroupsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etos_scan_row_groups_pruned_total",
			Help: "Row groups skipped by page statistics.",
		}),
		rowsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etos_scan_rows_matched_total",
			Help: "Rows returned by the scanner after all predicates.",
		}),
		sharedQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etos_queries_shared_total",
			Help: "Facade queries answered by an identical in-flight query.",
		}, []string{"op"}),
	}

	registerer.MustRegister(
		m.queries,
		m.queryDuration,
		m.filesScanned,
		m.filesPruned,
		m.filesSkipped,
		m.rowGroupsPruned,
		m.rowsMatched,
		m.sharedQueries,
	)

	return m
}

// ObserveQuery records one facade call.
func (m *Metrics) ObserveQuery(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(op, outcome).Inc()
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveScan records the statistics of one scan.
func (m *Metrics) ObserveScan(scanned, pruned, skipped, rowGroupsPruned, rows int) {
	if m == nil {
		return
	}
	m.filesScanned.Add(float64(scanned))
	m.filesPruned.Add(float64(pruned))
	m.filesSkipped.Add(float64(skipped))
	m.rowGroupsPruned.Add(float64(rowGroupsPruned))
	m.rowsMatched.Add(float64(rows))
}

// ObserveShared records a call that reused the result of an in-flight query.
func (m *Metrics) ObserveShared(op string) {
	if m == nil {
		return
	}
	m.sharedQueries.WithLabelValues(op).Inc()
}

// Classify maps a facade error to its outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errors.ErrSuperseded):
		return OutcomeSuperseded
	case errors.Is(err, errors.ErrMissingParameter):
		return OutcomeMissingParameter
	case errors.IsNotFound(err):
		return OutcomeNotFound
	case errors.Is(err, errors.ErrScanTimeout):
		return OutcomeTimeout
	case errors.Is(err, errors.ErrInvalidDateCode):
		return OutcomeInvalidDate
	case errors.Is(err, errors.ErrCorruptFile):
		return OutcomeCorrupt
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
