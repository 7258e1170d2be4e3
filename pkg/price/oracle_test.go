package price

import (
	"testing"
	"time"

	"loanwatch.io/pkg/sysevent"
)

type fakePublisher struct {
	updates []Update
	events  []sysevent.Event
	ticks   int
}

func (f *fakePublisher) PublishPriceUpdate(update Update) { f.updates = append(f.updates, update) }
func (f *fakePublisher) PublishSourceTick(string, float64, int64) { f.ticks++ }
func (f *fakePublisher) PublishSystemEvent(evt sysevent.Event) { f.events = append(f.events, evt) }

func TestOracleTickPublishesUpdate(t *testing.T) {
	pub := &fakePublisher{}
	o := NewOracle(pub, DefaultConfig())

	o.PublishSourceTick("kraken", 50000, time.Now().UnixMilli())
	o.PublishSourceTick("coinbase", 50010, time.Now().UnixMilli())
	o.PublishSourceTick("bitstamp", 49995, time.Now().UnixMilli())

	o.tick()

	if len(pub.updates) != 1 {
		t.Fatalf("expected exactly one published update, got %d", len(pub.updates))
	}
	if pub.ticks != 3 {
		t.Errorf("expected 3 rebroadcast ticks, got %d", pub.ticks)
	}

	found := false
	for _, evt := range pub.events {
		if evt.Type == sysevent.PriceUpdate {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a PRICE_UPDATE system event on every tick")
	}
}

func TestOracleEmitsSourceDegradedBelowMinSources(t *testing.T) {
	pub := &fakePublisher{}
	cfg := DefaultConfig()
	cfg.MinSources = 2
	o := NewOracle(pub, cfg)

	o.PublishSourceTick("kraken", 50000, time.Now().UnixMilli())
	o.tick()

	found := false
	for _, evt := range pub.events {
		if evt.Type == sysevent.SourceDegraded {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a SOURCE_DEGRADED event when fresh sources fall below min_sources")
	}
}
