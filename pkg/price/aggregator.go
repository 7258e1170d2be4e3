package price

import (
	"sort"
	"sync"
	"time"
)

// Aggregator is the price aggregator described in spec §4.2 (C2): a pure
// module that ingests per-source ticks and, on demand, produces a
// validated Update via median-combine, a circuit breaker, TWAP, and a
// confidence score. It is grounded on the teacher's
// MarkPriceCalculator (weighted/median spot index + basis EMA ring)
// adapted here to a pure median combine with a bounded sample ring and
// an explicit cooldown-style circuit breaker rather than a continuous
// EMA.
type Aggregator struct {
	cfg Config
	now func() time.Time

	mu sync.Mutex

	perSource map[string]sourceTick

	samples    []Sample
	sampleHead int // not read: appendSample shifts the slice, so the oldest sample is always at index 0

	lastKnownGood float64
	tripped       bool
	trippedAtMs   int64
}

type sourceTick struct {
	price       float64
	timestampMs int64
}

// NewAggregator creates an aggregator with cfg. A zero Config is
// replaced field-by-field with DefaultConfig's values where zero.
func NewAggregator(cfg Config) *Aggregator {
	if cfg.TWAPWindowSeconds == 0 {
		cfg.TWAPWindowSeconds = DefaultConfig().TWAPWindowSeconds
	}
	if cfg.CircuitBreakerPct == 0 {
		cfg.CircuitBreakerPct = DefaultConfig().CircuitBreakerPct
	}
	if cfg.MinSources == 0 {
		cfg.MinSources = DefaultConfig().MinSources
	}
	if cfg.PricePollInterval == 0 {
		cfg.PricePollInterval = DefaultConfig().PricePollInterval
	}
	return &Aggregator{
		cfg:       cfg,
		now:       time.Now,
		perSource: make(map[string]sourceTick),
	}
}

// IngestTick overwrites the freshest known price for source. The
// aggregator only cares about the latest value per source, not the
// stream (spec §4.2).
func (a *Aggregator) IngestTick(source string, price float64, timestampMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perSource[source] = sourceTick{price: price, timestampMs: timestampMs}
}

// ComputeUpdate runs the five-step algorithm from spec §4.2 and returns
// the resulting Update, or ok=false if no source is fresh.
func (a *Aggregator) ComputeUpdate() (Update, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	nowMs := now.UnixMilli()

	// Step 1: freshness filter.
	type fresh struct {
		source string
		price  float64
	}
	var freshSet []fresh
	for src, t := range a.perSource {
		if now.Sub(time.UnixMilli(t.timestampMs)) < freshnessCutoff {
			freshSet = append(freshSet, fresh{source: src, price: t.price})
		}
	}
	if len(freshSet) == 0 {
		return Update{}, false
	}

	// Order is irrelevant to the math but must be stable for sources
	// list stability within the same call; sort by source name.
	sort.Slice(freshSet, func(i, j int) bool { return freshSet[i].source < freshSet[j].source })

	prices := make([]float64, len(freshSet))
	sources := make([]string, len(freshSet))
	for i, f := range freshSet {
		prices[i] = f.price
		sources[i] = f.source
	}

	// Step 2: median combine.
	median := medianOf(prices)

	// Step 3: circuit breaker.
	circuitBreaker := false
	sampleForRing := median
	if a.lastKnownGood > 0 {
		delta := abs(median-a.lastKnownGood) / a.lastKnownGood
		threshold := a.cfg.CircuitBreakerPct / 100
		if delta > threshold {
			if !a.tripped || nowMs-a.trippedAtMs >= circuitBreakerTTL.Milliseconds() {
				a.tripped = true
				a.trippedAtMs = nowMs
			}
			circuitBreaker = true
			sampleForRing = a.lastKnownGood
		} else {
			a.tripped = false
			a.lastKnownGood = median
		}
	} else {
		a.lastKnownGood = median
	}

	a.appendSample(Sample{Price: sampleForRing, TimestampMs: nowMs, ContributingSources: sources})

	// Step 4: TWAP over the trailing window.
	twap := a.computeTWAP(nowMs)

	// Step 5: confidence.
	confidence := confidenceFor(prices)

	return Update{
		Price:          median,
		TimestampMs:    nowMs,
		Sources:        sources,
		TWAP5m:         twap,
		Confidence:     confidence,
		CircuitBreaker: circuitBreaker,
	}, true
}

// appendSample adds s to the bounded ring, dropping the oldest entry
// once the ring reaches maxSampleRing.
func (a *Aggregator) appendSample(s Sample) {
	if len(a.samples) < maxSampleRing {
		a.samples = append(a.samples, s)
		return
	}
	// Ring is full: drop the oldest (index 0) and append at the end.
	copy(a.samples, a.samples[1:])
	a.samples[len(a.samples)-1] = s
}

func (a *Aggregator) computeTWAP(nowMs int64) float64 {
	windowMs := int64(a.cfg.TWAPWindowSeconds) * 1000
	windowStart := nowMs - windowMs

	var windowed []Sample
	for _, s := range a.samples {
		if s.TimestampMs >= windowStart && s.TimestampMs <= nowMs {
			windowed = append(windowed, s)
		}
	}

	if len(windowed) == 0 {
		return a.lastKnownGood
	}
	if len(windowed) == 1 {
		return windowed[0].Price
	}

	var weightedSum, totalWeight float64
	for i, s := range windowed {
		var weight float64
		if i == len(windowed)-1 {
			weight = float64(nowMs - s.TimestampMs)
		} else {
			weight = float64(windowed[i+1].TimestampMs - s.TimestampMs)
		}
		weightedSum += s.Price * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return windowed[len(windowed)-1].Price
	}
	return weightedSum / totalWeight
}

func medianOf(prices []float64) float64 {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func confidenceFor(prices []float64) Confidence {
	n := len(prices)
	if n == 1 {
		return ConfidenceLow
	}
	if n == 2 {
		return ConfidenceMedium
	}
	min, max := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	spread := (max - min) / min
	switch {
	case spread < 0.005:
		return ConfidenceHigh
	case spread < 0.01:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
