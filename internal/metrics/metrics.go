// Package metrics provides Prometheus instrumentation and the streaming
// latency statistics used in the end-of-run summary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bench harness.
type Metrics struct {
	// Dispatch side
	TxSent       prometheus.Counter
	SendFailures prometheus.Counter

	// Confirmation side
	TxConfirmed   prometheus.Counter
	TxTimedOut    prometheus.Counter
	ExecErrors    prometheus.Counter
	BlocksScanned prometheus.Counter

	// Gauges
	CurrentSlot  prometheus.Gauge
	PendingIndex prometheus.Gauge

	// Histograms
	ConfirmLatency prometheus.Histogram
}

// New creates and registers all metrics. A nil registerer falls back to the
// default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TxSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_transactions_sent_total",
			Help: "Total quote transactions sent",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_send_failures_total",
			Help: "Transaction submissions rejected by the RPC node",
		}),
		TxConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_transactions_confirmed_total",
			Help: "Sent transactions found in a scanned block",
		}),
		TxTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_transactions_timed_out_total",
			Help: "Sent transactions whose tracking window closed unmatched",
		}),
		ExecErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_execution_errors_total",
			Help: "Confirmed transactions the on-chain program rejected",
		}),
		BlocksScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "quotebench_blocks_scanned_total",
			Help: "Blocks fetched and scanned by the confirmation tracker",
		}),
		CurrentSlot: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quotebench_current_slot",
			Help: "Latest slot observed by the network state poller",
		}),
		PendingIndex: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quotebench_pending_transactions",
			Help: "Send records awaiting confirmation or timeout",
		}),
		ConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quotebench_confirmation_latency_seconds",
			Help:    "Send-to-confirmation latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}),
	}
}
