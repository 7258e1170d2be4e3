package price

import "encoding/json"

const krakenURL = "wss://ws.kraken.com"

// KrakenSource streams the XBT/USD ticker channel (spec §6).
type KrakenSource struct {
	*baseSource
}

// NewKrakenSource creates a Kraken exchange source publishing ticks to sink.
func NewKrakenSource(sink TickSink) *KrakenSource {
	k := &KrakenSource{}
	k.baseSource = newBaseSource("kraken", k, sink)
	return k
}

func (k *KrakenSource) url() string { return krakenURL }

func (k *KrakenSource) subscribeFrame() []byte {
	b, _ := json.Marshal(map[string]any{
		"event": "subscribe",
		"pair":  []string{"XBT/USD"},
		"subscription": map[string]string{
			"name": "ticker",
		},
	})
	return b
}

// parse extracts the close price from a Kraken ticker array message:
// [channelID, {c: [price, lotVolume], ...}, "ticker", "XBT/USD"].
// Subscription acks, heartbeats, and any other shape are dropped.
func (k *KrakenSource) parse(msg []byte) (float64, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(msg, &arr); err != nil || len(arr) < 3 {
		return 0, false
	}

	var channel string
	if err := json.Unmarshal(arr[2], &channel); err != nil || channel != "ticker" {
		return 0, false
	}

	var payload struct {
		C []string `json:"c"`
	}
	if err := json.Unmarshal(arr[1], &payload); err != nil || len(payload.C) == 0 {
		return 0, false
	}

	return parsePositiveFloat(payload.C[0])
}
