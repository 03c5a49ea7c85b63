package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transaction_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_transfers_total",
		Help: "Transfers processed, labeled by terminal status of the sender leg",
	}, []string{"status"})

	CompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transaction_compensations_total",
		Help: "Refunds attempted after a failed credit leg",
	})

	RefundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transaction_refund_failures_total",
		Help: "Refunds that failed, leaving transfers requiring manual reconciliation",
	})

	ReconciliationDriftedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transaction_reconciliation_drifted_accounts",
		Help: "Accounts whose latest ledgered balance disagrees with the account service",
	})
)
