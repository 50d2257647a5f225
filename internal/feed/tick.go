package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"gridtrade.com/internal/model"
)

// rawTick mirrors the JSON pushed by the gateway on the market.* channels.
// Prices arrive in paise (1/100 of a rupee); OHLC may be absent for
// index feeds, in which case the zero values are carried through.
type rawTick struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds; 0 -> receive time
}

// ParseTick decodes a raw gateway payload into a normalized model.Tick.
// Ticks without a positive last price are rejected: the gateway emits
// zero-priced heartbeats during pre-open that must never reach matching.
func ParseTick(symbol string, payload []byte) (model.Tick, error) {
	var raw rawTick
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Tick{}, fmt.Errorf("failed to decode tick payload: %w", err)
	}

	if raw.LastPrice <= 0 {
		return model.Tick{}, fmt.Errorf("tick for %s has non-positive last price %.2f", symbol, raw.LastPrice)
	}

	ts := time.Now()
	if raw.Timestamp > 0 {
		ts = time.UnixMilli(raw.Timestamp)
	}

	// 价格单位换算: paise -> rupee
	return model.Tick{
		Symbol:    symbol,
		LTP:       raw.LastPrice / 100,
		Open:      raw.Open / 100,
		High:      raw.High / 100,
		Low:       raw.Low / 100,
		Close:     raw.Close / 100,
		Volume:    raw.Volume,
		Timestamp: ts,
	}, nil
}
