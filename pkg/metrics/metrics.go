// Package metrics exposes the core's Prometheus instrumentation.
// Grounded on the promauto-singleton pattern used across the example
// pack (e.g. the compute module's keeper.NewComputeMetrics), adapted
// to this system's much smaller surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge the core updates.
type Metrics struct {
	PriceUpdatesTotal   *prometheus.CounterVec
	CircuitBreakerTrips prometheus.Counter
	SourceDegradedTotal prometheus.Counter
	SourceTicksTotal    *prometheus.CounterVec
	SourceStale         *prometheus.GaugeVec
	AlertsTriggered     *prometheus.CounterVec
	LastPrice           prometheus.Gauge
	LastTWAP5m          prometheus.Gauge
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide Metrics, registering every collector on
// first call.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			PriceUpdatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanwatch",
				Subsystem: "oracle",
				Name:      "price_updates_total",
				Help:      "Price updates published, by confidence.",
			}, []string{"confidence"}),
			CircuitBreakerTrips: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "loanwatch",
				Subsystem: "oracle",
				Name:      "circuit_breaker_trips_total",
				Help:      "Times the aggregator's circuit breaker tripped.",
			}),
			SourceDegradedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "loanwatch",
				Subsystem: "oracle",
				Name:      "source_degraded_total",
				Help:      "Times the fresh source count fell below min_sources.",
			}),
			SourceTicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanwatch",
				Subsystem: "source",
				Name:      "ticks_total",
				Help:      "Ticks received per exchange source.",
			}, []string{"source"}),
			SourceStale: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "loanwatch",
				Subsystem: "source",
				Name:      "stale",
				Help:      "1 if the source has not ticked within the freshness cutoff.",
			}, []string{"source"}),
			AlertsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanwatch",
				Subsystem: "alertengine",
				Name:      "triggered_total",
				Help:      "Alerts triggered, by kind (price or ltv).",
			}, []string{"kind"}),
			LastPrice: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "loanwatch",
				Subsystem: "oracle",
				Name:      "last_price_usd",
				Help:      "Most recently published BTC/USD price.",
			}),
			LastTWAP5m: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "loanwatch",
				Subsystem: "oracle",
				Name:      "last_twap_5m_usd",
				Help:      "Most recently published 5-minute TWAP.",
			}),
		}
	})
	return instance
}
