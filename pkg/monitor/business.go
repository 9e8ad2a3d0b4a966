package monitor

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	RegistrationsTotal   *prometheus.CounterVec
	ConfirmationDuration prometheus.Histogram
	ReceiptPolls         prometheus.Counter
	ResolveRequests      *prometheus.CounterVec
	GasUsed              prometheus.Histogram
}

// business stays empty until InitBusinessMetrics runs; the Observe* helpers are no-ops then.
var business atomic.Pointer[BusinessMetrics]

// Business 返回当前的业务指标, 未初始化时为 nil
func Business() *BusinessMetrics {
	return business.Load()
}

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	business.Store(&BusinessMetrics{
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shortener_registrations_total",
			Help: "Registration attempts by final outcome",
		}, []string{"outcome"}),
		ConfirmationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "shortener_confirmation_duration_seconds",
			Help:    "Time from submission to terminal receipt",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ReceiptPolls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shortener_receipt_polls_total",
			Help: "Number of receipt polls issued to the gateway",
		}),
		ResolveRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shortener_resolve_requests_total",
			Help: "Read path lookups by result",
		}, []string{"result"}),
		GasUsed: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "shortener_register_gas_used",
			Help:    "Gas used by confirmed register transactions",
			Buckets: prometheus.ExponentialBuckets(21000, 1.5, 10),
		}),
	})
}

func ObserveRegistration(outcome string) {
	b := business.Load()
	if b == nil {
		return
	}
	b.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveConfirmation(seconds float64, gasUsed uint64) {
	b := business.Load()
	if b == nil {
		return
	}
	b.ConfirmationDuration.Observe(seconds)
	b.GasUsed.Observe(float64(gasUsed))
}

func ObserveReceiptPoll() {
	b := business.Load()
	if b == nil {
		return
	}
	b.ReceiptPolls.Inc()
}

func ObserveResolve(result string) {
	b := business.Load()
	if b == nil {
		return
	}
	b.ResolveRequests.WithLabelValues(result).Inc()
}
