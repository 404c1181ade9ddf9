// Package telemetry defines the prometheus metrics surfaced across the
// backtest, live/paper, and collector binaries, registered once via
// promauto against the default registry and exposed on /metrics by the
// status server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every counter/gauge this module exposes. Callers hold
// one instance and pass it to whichever subsystem needs to record against
// it; all metrics are registered against the default registry at
// construction time via promauto.
type Metrics struct {
	TicksIngested   *prometheus.CounterVec
	TradesOpened    *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	PortfolioEquity *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
	DeadLetterBatches   prometheus.Gauge
	FeedReconnects      *prometheus.CounterVec
}

// New registers and returns the full metric set. Call once per process.
func New() *Metrics {
	return &Metrics{
		TicksIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictengine",
			Subsystem: "collector",
			Name:      "ticks_ingested_total",
			Help:      "Trade events ingested by the tick collector, by asset id.",
		}, []string{"asset_id"}),

		TradesOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictengine",
			Subsystem: "engine",
			Name:      "trades_opened_total",
			Help:      "Positions opened by the live/paper engine, by engine mode.",
		}, []string{"mode"}),

		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictengine",
			Subsystem: "engine",
			Name:      "trades_closed_total",
			Help:      "Positions closed by the live/paper engine, by engine mode.",
		}, []string{"mode"}),

		PortfolioEquity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "predictengine",
			Subsystem: "engine",
			Name:      "portfolio_equity",
			Help:      "Current total equity (cash + open position mark-to-market), by engine mode.",
		}, []string{"mode"}),

		CircuitBreakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictengine",
			Subsystem: "engine",
			Name:      "circuit_breaker_trips_total",
			Help:      "Circuit breaker state transitions to open, by breaker name.",
		}, []string{"breaker"}),

		DeadLetterBatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "predictengine",
			Subsystem: "collector",
			Name:      "dead_letter_batches",
			Help:      "Tick batches currently held in the collector's dead-letter ring.",
		}),

		FeedReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictengine",
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "MarketFeed reconnect attempts, by reason (backoff vs forced resubscribe).",
		}, []string{"reason"}),
	}
}
