package model

import (
	"time"
)

// FrequencyUnit 定投周期单位
type FrequencyUnit string

const (
	FrequencyMinutes FrequencyUnit = "minutes"
	FrequencyHours   FrequencyUnit = "hours"
	FrequencyDays    FrequencyUnit = "days"
)

// EndCondition decides when a DCA strategy stops executing.
type EndCondition string

const (
	EndConditionOrderCount EndCondition = "orderCount"
	EndConditionStopLoss   EndCondition = "stopLoss"
	EndConditionTakeProfit EndCondition = "takeProfit"
	EndConditionManual     EndCondition = "manual"
)

// DCAConfig 定投策略参数（创建后不可变）
type DCAConfig struct {
	InvestmentAmount float64       `json:"investmentAmount"`
	Frequency        int           `json:"frequency"`
	FrequencyUnit    FrequencyUnit `json:"frequencyUnit"`
	StartTime        time.Time     `json:"startTime"`
	EndCondition     EndCondition  `json:"endCondition"`
	MaxOrders        int           `json:"maxOrders"`
	StopLoss         float64       `json:"stopLoss"`
	TakeProfit       float64       `json:"takeProfit"`
	OrderType        OrderType     `json:"orderType"`
	EnableStopLoss   bool          `json:"enableStopLoss"`
	EnableTakeProfit bool          `json:"enableTakeProfit"`
}

// Interval returns the wall-clock gap between two executions.
// Minutes granularity is supported down to 1 minute.
func (c DCAConfig) Interval() time.Duration {
	n := c.Frequency
	if n < 1 {
		n = 1
	}
	switch c.FrequencyUnit {
	case FrequencyMinutes:
		return time.Duration(n) * time.Minute
	case FrequencyHours:
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * 24 * time.Hour
	}
}

// IntervalDays returns the interval floored to whole days, at least 1.
// Sub-day DCA backtesting degrades to daily granularity.
func (c DCAConfig) IntervalDays() int {
	days := int(c.Interval() / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}

// DCAMonitoring 定投监控快照，每次执行后从订单账本整体重算
type DCAMonitoring struct {
	TotalPnL        float64    `json:"totalPnL"`
	ROI             float64    `json:"roi"`
	ExecutedOrders  int        `json:"executedOrders"`
	PendingOrders   int        `json:"pendingOrders"`
	TotalInvestment float64    `json:"totalInvestment"`
	CurrentValue    float64    `json:"currentValue"`
	AveragePrice    float64    `json:"averagePrice"`
	TotalQuantity   float64    `json:"totalQuantity"`
	StartTime       time.Time  `json:"startTime"`
	LastUpdate      time.Time  `json:"lastUpdate"`
	NextOrderTime   *time.Time `json:"nextOrderTime,omitempty"`
}

// DCAStrategy represents a dollar-cost-averaging strategy instance.
type DCAStrategy struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	StrategyID string `gorm:"uniqueIndex" json:"strategyId"`

	Symbol string         `gorm:"index:idx_dca_symbol_status" json:"symbol"`
	Status StrategyStatus `gorm:"index:idx_dca_symbol_status" json:"status"`

	Config     DCAConfig     `gorm:"serializer:json" json:"config"`
	Monitoring DCAMonitoring `gorm:"serializer:json" json:"monitoring"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
