package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/sysevent"
)

func TestPublishPriceUpdateDeliversInOrder(t *testing.T) {
	b := New()
	var order []int
	b.OnPriceUpdate(func(price.Update) { order = append(order, 1) })
	b.OnPriceUpdate(func(price.Update) { order = append(order, 2) })

	b.PublishPriceUpdate(price.Update{Price: 50000})

	require.Equal(t, []int{1, 2}, order)
}

func TestPublishSystemEventStampsTimestamp(t *testing.T) {
	b := New()
	b.PublishSystemEvent(sysevent.Event{Type: sysevent.CircuitBreaker})

	events := b.SystemEvents(sysevent.CircuitBreaker)
	require.Len(t, events, 1)
	require.NotZero(t, events[0].Timestamp)
}

func TestSystemEventsFiltersByType(t *testing.T) {
	b := New()
	b.PublishSystemEvent(sysevent.Event{Type: sysevent.CircuitBreaker})
	b.PublishSystemEvent(sysevent.Event{Type: sysevent.SourceDegraded})
	b.PublishSystemEvent(sysevent.Event{Type: sysevent.CircuitBreaker})

	cb := b.SystemEvents(sysevent.CircuitBreaker)
	require.Len(t, cb, 2)

	all := b.SystemEvents("")
	require.Len(t, all, 3)
}

func TestSystemEventsRingEvictsOldest(t *testing.T) {
	b := New()
	for i := 0; i < systemEventRingSize+10; i++ {
		b.PublishSystemEvent(sysevent.Event{Type: sysevent.SourceDegraded, Payload: i})
	}

	all := b.SystemEvents("")
	require.Len(t, all, systemEventRingSize)
	require.Equal(t, 10, all[0].Payload.(int))
}

func TestPublishSourceTickAndLog(t *testing.T) {
	b := New()
	var gotSource string
	var gotLine string
	b.OnSourceTick(func(source string, tickPrice float64, timestampMs int64) { gotSource = source })
	b.OnLog(func(line string) { gotLine = line })

	b.PublishSourceTick("kraken", 50000, 1)
	b.PublishLog("hello")

	require.Equal(t, "kraken", gotSource)
	require.Equal(t, "hello", gotLine)
}
