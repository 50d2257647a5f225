package model

import "time"

// Tick is one normalized price update delivered by the feed gateway.
type Tick struct {
	Symbol    string    `json:"symbol"`
	LTP       float64   `json:"ltp"` // last traded price
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
