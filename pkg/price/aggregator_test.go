package price

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAggregatorComputeUpdateNoSources(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	_, ok := a.ComputeUpdate()
	if ok {
		t.Fatalf("expected no update with no ingested ticks")
	}
}

// S5: three sources report 50000, 50010, 49995 -> median 50000.
func TestAggregatorMedianCombine(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	base := time.UnixMilli(1_700_000_000_000)
	a.now = fixedClock(base)

	a.IngestTick("kraken", 50000, base.UnixMilli())
	a.IngestTick("coinbase", 50010, base.UnixMilli())
	a.IngestTick("bitstamp", 49995, base.UnixMilli())

	update, ok := a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update")
	}
	if update.Price != 50000 {
		t.Errorf("expected median 50000, got %v", update.Price)
	}
	if len(update.Sources) != 3 {
		t.Errorf("expected 3 contributing sources, got %d", len(update.Sources))
	}
	if update.Confidence != ConfidenceHigh {
		t.Errorf("expected HIGH confidence for tight spread, got %v", update.Confidence)
	}
}

func TestAggregatorStaleTicksExcluded(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	base := time.UnixMilli(1_700_000_000_000)
	a.now = fixedClock(base)

	a.IngestTick("kraken", 50000, base.Add(-40*time.Second).UnixMilli())
	a.IngestTick("coinbase", 50010, base.UnixMilli())

	update, ok := a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update from the one fresh source")
	}
	if len(update.Sources) != 1 || update.Sources[0] != "coinbase" {
		t.Errorf("expected only coinbase to contribute, got %v", update.Sources)
	}
	if update.Confidence != ConfidenceLow {
		t.Errorf("expected LOW confidence with a single source, got %v", update.Confidence)
	}
}

func TestAggregatorEvenSourceCountAveragesMiddleTwo(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	base := time.UnixMilli(1_700_000_000_000)
	a.now = fixedClock(base)

	a.IngestTick("kraken", 50000, base.UnixMilli())
	a.IngestTick("coinbase", 50020, base.UnixMilli())

	update, ok := a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update")
	}
	if update.Price != 50010 {
		t.Errorf("expected average of two middle values 50010, got %v", update.Price)
	}
	if update.Confidence != ConfidenceMedium {
		t.Errorf("expected MEDIUM confidence with two sources, got %v", update.Confidence)
	}
}

// S6: a single update that deviates > circuit_breaker_pct from the
// prior last_known_good trips the breaker and the reported price still
// reflects the new median, but the TWAP-feeding sample uses the old
// last_known_good. The breaker stays tripped for the full cooldown.
func TestAggregatorCircuitBreakerTripsAndHolds(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAggregator(cfg)
	base := time.UnixMilli(1_700_000_000_000)
	a.now = fixedClock(base)

	a.IngestTick("kraken", 50000, base.UnixMilli())
	a.IngestTick("coinbase", 50000, base.UnixMilli())
	update, ok := a.ComputeUpdate()
	if !ok || update.CircuitBreaker {
		t.Fatalf("expected a clean first update, got %+v ok=%v", update, ok)
	}

	spikeTime := base.Add(5 * time.Second)
	a.now = fixedClock(spikeTime)
	a.IngestTick("kraken", 60000, spikeTime.UnixMilli())
	a.IngestTick("coinbase", 60000, spikeTime.UnixMilli())

	update, ok = a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update")
	}
	if !update.CircuitBreaker {
		t.Fatalf("expected circuit breaker to trip on a 20%% jump")
	}
	if update.Price != 60000 {
		t.Errorf("reported price should still be the new median, got %v", update.Price)
	}

	midCooldown := spikeTime.Add(30 * time.Second)
	a.now = fixedClock(midCooldown)
	a.IngestTick("kraken", 60000, midCooldown.UnixMilli())
	a.IngestTick("coinbase", 60000, midCooldown.UnixMilli())
	update, ok = a.ComputeUpdate()
	if !ok || !update.CircuitBreaker {
		t.Fatalf("expected breaker to remain tripped within the 60s cooldown")
	}
}

func TestAggregatorCircuitBreakerClearsOnRecovery(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAggregator(cfg)
	base := time.UnixMilli(1_700_000_000_000)
	a.now = fixedClock(base)

	a.IngestTick("kraken", 50000, base.UnixMilli())
	a.IngestTick("coinbase", 50000, base.UnixMilli())
	if _, ok := a.ComputeUpdate(); !ok {
		t.Fatalf("expected clean first update")
	}

	spikeTime := base.Add(5 * time.Second)
	a.now = fixedClock(spikeTime)
	a.IngestTick("kraken", 60000, spikeTime.UnixMilli())
	a.IngestTick("coinbase", 60000, spikeTime.UnixMilli())
	if update, ok := a.ComputeUpdate(); !ok || !update.CircuitBreaker {
		t.Fatalf("expected a trip on the spike")
	}

	recoverTime := spikeTime.Add(1 * time.Second)
	a.now = fixedClock(recoverTime)
	a.IngestTick("kraken", 50010, recoverTime.UnixMilli())
	a.IngestTick("coinbase", 50010, recoverTime.UnixMilli())
	update, ok := a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update")
	}
	if update.CircuitBreaker {
		t.Errorf("breaker should clear once the price is back within threshold of last_known_good")
	}
}

func TestAggregatorTWAPWeightsByInterval(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAggregator(cfg)
	base := time.UnixMilli(1_700_000_000_000)

	a.now = fixedClock(base)
	a.IngestTick("kraken", 50000, base.UnixMilli())
	a.ComputeUpdate()

	t2 := base.Add(200 * time.Second)
	a.now = fixedClock(t2)
	a.IngestTick("kraken", 51000, t2.UnixMilli())
	a.ComputeUpdate()

	t3 := base.Add(300 * time.Second)
	a.now = fixedClock(t3)
	a.IngestTick("kraken", 51000, t3.UnixMilli())
	update, ok := a.ComputeUpdate()
	if !ok {
		t.Fatalf("expected update")
	}
	if update.TWAP5m <= 50000 || update.TWAP5m >= 51000 {
		t.Errorf("expected TWAP strictly between 50000 and 51000, got %v", update.TWAP5m)
	}
}
