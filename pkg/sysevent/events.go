// Package sysevent defines the system-event vocabulary shared between the
// oracle/alert engine (producers) and the event bus (the retained ring
// buffer and fan-out mechanism). It is deliberately dependency-free so
// that both pkg/price and pkg/bus can depend on it without introducing
// an import cycle between them.
package sysevent

// Type identifies a system event published on the system:event channel.
type Type string

const (
	PriceUpdate    Type = "PRICE_UPDATE"
	CircuitBreaker Type = "CIRCUIT_BREAKER"
	SourceDegraded Type = "SOURCE_DEGRADED"
	AlertTriggered Type = "ALERT_TRIGGERED"
)

// Event is a single entry in the bus's retained ring buffer.
type Event struct {
	Type      Type  `json:"type"`
	Payload   any   `json:"payload,omitempty"`
	Timestamp int64 `json:"timestamp"`
}

// SourceDegradedPayload is the Payload of a SourceDegraded event.
type SourceDegradedPayload struct {
	Count int `json:"count"`
	Min   int `json:"min_sources"`
}

// AlertKind distinguishes the two alert flavors that can trigger.
type AlertKind string

const (
	AlertKindPrice AlertKind = "price"
	AlertKindLTV   AlertKind = "ltv"
)

// AlertTriggeredPayload is the Payload of an AlertTriggered event.
type AlertTriggeredPayload struct {
	Kind      AlertKind `json:"type"`
	AlertID   string    `json:"alert_id"`
	Token     string    `json:"token"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
}
