package model

import (
	"time"
)

// Candle is one bar of the historical OHLCV series consumed by backtests.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// BacktestTrade is one simulated trade produced during a replay.
type BacktestTrade struct {
	Type      OrderType `json:"type"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	PnL       float64   `json:"pnl"`
	GridLevel int       `json:"gridLevel,omitempty"`
}

// GridBacktestStats 网格回测汇总指标
type GridBacktestStats struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	TotalPnL      float64 `json:"totalPnL"`
	ROI           float64 `json:"roi"`
	MaxDrawdown   float64 `json:"maxDrawdown"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	WinRate       float64 `json:"winRate"`
}

// DCABacktestStats 定投回测汇总指标
type DCABacktestStats struct {
	TotalOrders     int     `json:"totalOrders"`
	TotalInvestment float64 `json:"totalInvestment"`
	CurrentValue    float64 `json:"currentValue"`
	TotalPnL        float64 `json:"totalPnL"`
	ROI             float64 `json:"roi"`
	AveragePrice    float64 `json:"averagePrice"`
	TotalQuantity   float64 `json:"totalQuantity"`
	FinalPrice      float64 `json:"finalPrice"`
}

// GridBacktestResult is the persisted record of one grid replay.
type GridBacktestResult struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	StrategyID string            `gorm:"index" json:"strategyId"`
	Symbol     string            `gorm:"index" json:"symbol"`
	Config     GridConfig        `gorm:"serializer:json" json:"config"`
	Results    GridBacktestStats `gorm:"serializer:json" json:"results"`
	Trades     []BacktestTrade   `gorm:"serializer:json" json:"trades"`
	Period     string            `json:"period"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// DCABacktestResult is the persisted record of one DCA replay.
type DCABacktestResult struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	StrategyID string           `gorm:"index" json:"strategyId"`
	Symbol     string           `gorm:"index" json:"symbol"`
	Config     DCAConfig        `gorm:"serializer:json" json:"config"`
	Results    DCABacktestStats `gorm:"serializer:json" json:"results"`
	Trades     []BacktestTrade  `gorm:"serializer:json" json:"trades"`
	Period     string           `json:"period"`
	CreatedAt  time.Time        `json:"createdAt"`
}
