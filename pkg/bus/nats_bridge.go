package bus

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"loanwatch.io/pkg/price"
	"loanwatch.io/pkg/sysevent"
)

const (
	priceUpdateSubject = "loanwatch.price.update"
	systemEventSubject = "loanwatch.system.event"
)

// NatsBridge relays price:update and system:event onto NATS subjects so
// a process other than the monitor (a second dashboard instance, an
// export job) can observe the core without linking against it.
// Grounded on the teacher's nats.Publisher/Subscriber
// (pkg/nats/publisher.go, pkg/nats/subscriber.go).
type NatsBridge struct {
	conn *nats.Conn
}

// NewNatsBridge connects to url and subscribes b's price:update and
// system:event channels so every local event is republished to NATS.
func NewNatsBridge(url string, b *Bus) (*NatsBridge, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	bridge := &NatsBridge{conn: conn}

	b.OnPriceUpdate(func(update price.Update) {
		bridge.publish(priceUpdateSubject, update)
	})
	b.OnSystemEvent(func(evt sysevent.Event) {
		bridge.publish(systemEventSubject, evt)
	})

	return bridge, nil
}

// Close closes the underlying connection; it does not drain it first.
func (n *NatsBridge) Close() { n.conn.Close() }

func (n *NatsBridge) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[bus] nats bridge: marshal failed for %s: %v", subject, err)
		return
	}
	if err := n.conn.Publish(subject, data); err != nil {
		log.Printf("[bus] nats bridge: publish failed for %s: %v", subject, err)
	}
}
