// Package metrics exposes the router's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RFQ metrics
	rfqOutcomeMetrics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swaprouter_rfq_outcomes_total",
			Help: "Firm quote calls by maker endpoint and terminal outcome",
		}, []string{"endpoint", "kind"},
	)

	rfqLatencyMetrics = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swaprouter_rfq_latency_milliseconds",
			Help:    "Firm quote call duration per maker endpoint",
			Buckets: prometheus.LinearBuckets(50, 50, 20), // 50ms to 1s
		}, []string{"endpoint"},
	)

	rfqRoundAcceptedMetrics = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swaprouter_rfq_round_accepted_quotes",
			Help:    "Accepted quotes per firm quote round",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)

	// Compiler metrics
	compiledOrderMetrics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swaprouter_compiled_orders_total",
			Help: "Settlement orders emitted by the compiler by kind",
		}, []string{"kind"},
	)

	compileErrorMetrics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swaprouter_compile_errors_total",
			Help: "Rejected compilations by reason",
		}, []string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		rfqOutcomeMetrics,
		rfqLatencyMetrics,
		rfqRoundAcceptedMetrics,
		compiledOrderMetrics,
		compileErrorMetrics,
	)
}

// ObserveQuoteOutcome records one maker call.
func ObserveQuoteOutcome(endpoint, kind string, latency time.Duration) {
	rfqOutcomeMetrics.WithLabelValues(endpoint, kind).Inc()
	rfqLatencyMetrics.WithLabelValues(endpoint).Observe(float64(latency.Milliseconds()))
}

// ObserveQuoteRound records how many quotes a round accepted.
func ObserveQuoteRound(accepted int) {
	rfqRoundAcceptedMetrics.Observe(float64(accepted))
}

// ObserveCompiledOrder counts one emitted settlement order.
func ObserveCompiledOrder(kind string) {
	compiledOrderMetrics.WithLabelValues(kind).Inc()
}

// ObserveCompileError counts one rejected compilation.
func ObserveCompileError(reason string) {
	compileErrorMetrics.WithLabelValues(reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
