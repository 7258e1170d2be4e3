package price

import "encoding/json"

const bitstampURL = "wss://ws.bitstamp.net"

// BitstampSource streams the live_trades_btcusd channel (spec §6).
type BitstampSource struct {
	*baseSource
}

// NewBitstampSource creates a Bitstamp exchange source publishing ticks to sink.
func NewBitstampSource(sink TickSink) *BitstampSource {
	b := &BitstampSource{}
	b.baseSource = newBaseSource("bitstamp", b, sink)
	return b
}

func (b *BitstampSource) url() string { return bitstampURL }

func (b *BitstampSource) subscribeFrame() []byte {
	out, _ := json.Marshal(map[string]any{
		"event": "bts:subscribe",
		"data": map[string]string{
			"channel": "live_trades_btcusd",
		},
	})
	return out
}

// parse extracts the trade price from a Bitstamp trade message:
// {event:"trade", channel:"live_trades_btcusd", data:{price:...}}.
func (b *BitstampSource) parse(msg []byte) (float64, bool) {
	var payload struct {
		Event   string `json:"event"`
		Channel string `json:"channel"`
		Data    struct {
			Price json.Number `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return 0, false
	}
	if payload.Event != "trade" || payload.Channel != "live_trades_btcusd" {
		return 0, false
	}
	f, err := payload.Data.Price.Float64()
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
