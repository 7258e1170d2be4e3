package price

import "time"

// Config enumerates the oracle/aggregator's tunables (spec §4.2, §6).
type Config struct {
	// TWAPWindowSeconds is the width of the TWAP window. Default 300.
	TWAPWindowSeconds int

	// CircuitBreakerPct is the relative-change threshold, in percent,
	// beyond which the aggregator trips the circuit breaker. Default 10.
	CircuitBreakerPct float64

	// MinSources is the source count below which the oracle emits a
	// SOURCE_DEGRADED event. Default 1.
	MinSources int

	// PricePollInterval is the oracle's tick period. Default 5s.
	PricePollInterval time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		TWAPWindowSeconds: 300,
		CircuitBreakerPct: 10,
		MinSources:        1,
		PricePollInterval: 5000 * time.Millisecond,
	}
}

const (
	freshnessCutoff   = 30 * time.Second
	circuitBreakerTTL = 60 * time.Second
	maxSampleRing     = 2000
)
