package price

import "encoding/json"

const coinbaseURL = "wss://ws-feed.exchange.coinbase.com"

// CoinbaseSource streams the BTC-USD ticker channel (spec §6).
type CoinbaseSource struct {
	*baseSource
}

// NewCoinbaseSource creates a Coinbase exchange source publishing ticks to sink.
func NewCoinbaseSource(sink TickSink) *CoinbaseSource {
	c := &CoinbaseSource{}
	c.baseSource = newBaseSource("coinbase", c, sink)
	return c
}

func (c *CoinbaseSource) url() string { return coinbaseURL }

func (c *CoinbaseSource) subscribeFrame() []byte {
	b, _ := json.Marshal(map[string]any{
		"type":        "subscribe",
		"product_ids": []string{"BTC-USD"},
		"channels":    []string{"ticker"},
	})
	return b
}

// parse extracts the price from a Coinbase ticker message:
// {type:"ticker", product_id:"BTC-USD", price:"..."}.
func (c *CoinbaseSource) parse(msg []byte) (float64, bool) {
	var payload struct {
		Type      string `json:"type"`
		ProductID string `json:"product_id"`
		Price     string `json:"price"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return 0, false
	}
	if payload.Type != "ticker" || payload.ProductID != "BTC-USD" {
		return 0, false
	}
	return parsePositiveFloat(payload.Price)
}
