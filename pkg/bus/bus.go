package bus

import (
	"sync"
	"time"

	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/sysevent"
)

const systemEventRingSize = 1000

// PriceHandler is called for every price:update.
type PriceHandler func(update price.Update)

// SourceTickHandler is called for every price:source_tick.
type SourceTickHandler func(source string, tickPrice float64, timestampMs int64)

// SystemEventHandler is called for every system:event.
type SystemEventHandler func(evt sysevent.Event)

// LogHandler is called for every system:log line.
type LogHandler func(line string)

// Bus is the in-process pub/sub hub described in spec §4.5 (C5).
//
// Delivery is synchronous, in subscriber-registration order, with no
// queue or backpressure: handlers are expected to be cheap. The bus
// additionally retains the last 1000 system events in a ring buffer,
// queryable by type.
type Bus struct {
	mu sync.RWMutex

	priceSubs []PriceHandler
	tickSubs  []SourceTickHandler
	eventSubs []SystemEventHandler
	logSubs   []LogHandler

	ring     [systemEventRingSize]sysevent.Event
	ringHead int
	ringLen  int
	ringMu   sync.Mutex
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// OnPriceUpdate subscribes to price:update.
func (b *Bus) OnPriceUpdate(h PriceHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.priceSubs = append(b.priceSubs, h)
}

// OnSourceTick subscribes to price:source_tick.
func (b *Bus) OnSourceTick(h SourceTickHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tickSubs = append(b.tickSubs, h)
}

// OnSystemEvent subscribes to system:event.
func (b *Bus) OnSystemEvent(h SystemEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventSubs = append(b.eventSubs, h)
}

// OnLog subscribes to system:log.
func (b *Bus) OnLog(h LogHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logSubs = append(b.logSubs, h)
}

// PublishPriceUpdate delivers update synchronously to every price:update
// subscriber, in registration order, running each handler to completion
// before calling the next. The oracle is the sole publisher of this
// channel and never calls Publish from two goroutines at once, which is
// what gives price:update its strict per-subscriber ordering (spec §5).
func (b *Bus) PublishPriceUpdate(update price.Update) {
	b.mu.RLock()
	subs := make([]PriceHandler, len(b.priceSubs))
	copy(subs, b.priceSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(update)
	}
}

// PublishSourceTick delivers a raw per-source tick to subscribers.
func (b *Bus) PublishSourceTick(source string, tickPrice float64, timestampMs int64) {
	b.mu.RLock()
	subs := make([]SourceTickHandler, len(b.tickSubs))
	copy(subs, b.tickSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(source, tickPrice, timestampMs)
	}
}

// PublishSystemEvent records evt in the ring buffer and delivers it to
// subscribers. If evt.Timestamp is zero it is stamped with the current
// time.
func (b *Bus) PublishSystemEvent(evt sysevent.Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = evt
	b.ringHead = (b.ringHead + 1) % systemEventRingSize
	if b.ringLen < systemEventRingSize {
		b.ringLen++
	}
	b.ringMu.Unlock()

	b.mu.RLock()
	subs := make([]SystemEventHandler, len(b.eventSubs))
	copy(subs, b.eventSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(evt)
	}
}

// PublishLog delivers a log line to system:log subscribers.
func (b *Bus) PublishLog(line string) {
	b.mu.RLock()
	subs := make([]LogHandler, len(b.logSubs))
	copy(subs, b.logSubs)
	b.mu.RUnlock()

	for _, h := range subs {
		h(line)
	}
}

// SystemEvents returns the retained system events, oldest first,
// optionally filtered to a single type. typ == "" returns everything.
func (b *Bus) SystemEvents(typ sysevent.Type) []sysevent.Event {
	b.ringMu.Lock()
	defer b.ringMu.Unlock()

	out := make([]sysevent.Event, 0, b.ringLen)
	start := (b.ringHead - b.ringLen + systemEventRingSize) % systemEventRingSize
	for i := 0; i < b.ringLen; i++ {
		evt := b.ring[(start+i)%systemEventRingSize]
		if typ == "" || evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}
