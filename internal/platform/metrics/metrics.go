package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the importer and forwarder.
type Metrics struct {
	RowsImported    prometheus.Counter
	RowsErrored     prometheus.Counter
	BatchCommitSecs prometheus.Histogram
	RowsForwarded   *prometheus.CounterVec
	ForwardLag      *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RowsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "jali_rows_imported_total",
			Help: "Total number of input rows successfully imported",
		}),
		RowsErrored: factory.NewCounter(prometheus.CounterOpts{
			Name: "jali_rows_errored_total",
			Help: "Total number of input rows skipped due to row-level errors",
		}),
		BatchCommitSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jali_batch_commit_seconds",
			Help:    "Duration of batch transaction commits",
			Buckets: prometheus.DefBuckets,
		}),
		RowsForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jali_rows_forwarded_total",
			Help: "Total number of rows forwarded to the analytical store, by table",
		}, []string{"table"}),
		ForwardLag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jali_forward_watermark_lag_seconds",
			Help: "Age of the replication watermark per table at the last cycle",
		}, []string{"table"}),
	}
}
