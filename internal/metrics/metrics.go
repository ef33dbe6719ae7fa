package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IndicatorFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_indicator_fetches_total",
			Help: "Indicator fetches by backend and outcome",
		},
		[]string{"backend", "status"}, // taapi/local, ok/degraded/short_circuit
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	MarketLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_market_lookups_total",
			Help: "Prediction market snapshot lookups",
		},
		[]string{"status"}, // found, not_found, excluded, error
	)

	AggregatedAssets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_aggregated_assets_total",
			Help: "Assets gathered by the market data aggregator",
		},
		[]string{"status"}, // ok, omitted
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_llm_calls_total",
			Help: "Decision engine model calls by outcome",
		},
		[]string{"purpose", "outcome"}, // decide/trades, ok/structural/transport
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "updown_llm_call_duration_seconds",
			Help:    "Latency of a single model round-trip",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"purpose"},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_predictions_total",
			Help: "Completed prediction cycles by asset and direction",
		},
		[]string{"asset", "direction"},
	)

	PredictionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_prediction_failures_total",
			Help: "Failed prediction cycles by reason",
		},
		[]string{"reason"}, // market_not_found, structural, transport, other
	)

	Orders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_orders_total",
			Help: "Order placement attempts",
		},
		[]string{"status"}, // placed, skipped, error
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "updown_prediction_duration_seconds",
			Help:    "End to end duration of one prediction cycle",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120},
		},
	)
)

func ObserveLLM(purpose, outcome string, started time.Time) {
	LLMCalls.WithLabelValues(purpose, outcome).Inc()
	LLMLatency.WithLabelValues(purpose).Observe(time.Since(started).Seconds())
}
