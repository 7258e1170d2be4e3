package price

import (
	"log"
	"time"

	"loanwatch.io/pkg/sysevent"
)

// Publisher is the downstream the oracle drives: price:update and
// system:event fan-out. *bus.Bus satisfies this structurally, which is
// what keeps this package free of any import on pkg/bus.
type Publisher interface {
	PublishPriceUpdate(update Update)
	PublishSourceTick(source string, tickPrice float64, timestampMs int64)
	PublishSystemEvent(evt sysevent.Event)
}

// Oracle is the price oracle service described in spec §4.3 (C3): it
// owns the three exchange sources and the aggregator, drives
// ComputeUpdate on a fixed interval, and publishes the result plus any
// SOURCE_DEGRADED / CIRCUIT_BREAKER system events.
type Oracle struct {
	sources    []Source
	aggregator *Aggregator
	pub        Publisher
	interval   time.Duration
	minSources int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewOracle builds an oracle wired to Kraken, Coinbase, and Bitstamp,
// publishing every update and system event to pub.
func NewOracle(pub Publisher, cfg Config) *Oracle {
	o := &Oracle{
		aggregator: NewAggregator(cfg),
		pub:        pub,
		interval:   cfg.PricePollInterval,
		minSources: cfg.MinSources,
	}
	o.sources = []Source{
		NewKrakenSource(o),
		NewCoinbaseSource(o),
		NewBitstampSource(o),
	}
	return o
}

// PublishSourceTick implements TickSink: every raw tick from an
// exchange source is fed into the aggregator and rebroadcast on the
// source:tick stream before the next ComputeUpdate tick runs.
func (o *Oracle) PublishSourceTick(source string, tickPrice float64, timestampMs int64) {
	o.aggregator.IngestTick(source, tickPrice, timestampMs)
	if o.pub != nil {
		o.pub.PublishSourceTick(source, tickPrice, timestampMs)
	}
}

// Start connects all three sources and begins the ComputeUpdate timer.
// Safe to call once per Oracle.
func (o *Oracle) Start() {
	for _, s := range o.sources {
		s.Start()
	}
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	go o.run()
}

// Stop halts the timer and disconnects every source. Blocks until both
// have fully wound down.
func (o *Oracle) Stop() {
	if o.stopCh != nil {
		close(o.stopCh)
		<-o.doneCh
	}
	for _, s := range o.sources {
		s.Stop()
	}
}

// Sources exposes the underlying exchange sources, e.g. for a health
// snapshot endpoint (spec §9).
func (o *Oracle) Sources() []Source { return o.sources }

// SourceHealth reports, per source name, whether its last tick is
// within the freshness cutoff -- the same check tick() uses to decide
// SOURCE_DEGRADED, exposed so a metrics/health handler can mirror it
// without duplicating the cutoff constant.
func (o *Oracle) SourceHealth() map[string]bool {
	health := make(map[string]bool, len(o.sources))
	for _, s := range o.sources {
		health[s.Name()] = !s.IsStale(freshnessCutoff)
	}
	return health
}

func (o *Oracle) run() {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.tick()
		}
	}
}

func (o *Oracle) tick() {
	fresh := 0
	for _, s := range o.sources {
		if !s.IsStale(freshnessCutoff) {
			fresh++
		}
	}
	if fresh < o.minSources {
		o.pub.PublishSystemEvent(sysevent.Event{
			Type:    sysevent.SourceDegraded,
			Payload: sysevent.SourceDegradedPayload{Count: fresh, Min: o.minSources},
		})
	}

	update, ok := o.aggregator.ComputeUpdate()
	if !ok {
		log.Printf("[price] oracle: no fresh source, skipping tick")
		return
	}
	if update.CircuitBreaker {
		o.pub.PublishSystemEvent(sysevent.Event{Type: sysevent.CircuitBreaker, Payload: update})
	}
	o.pub.PublishSystemEvent(sysevent.Event{Type: sysevent.PriceUpdate, Payload: update})
	o.pub.PublishPriceUpdate(update)
}
