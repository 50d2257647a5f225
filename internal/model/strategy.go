package model

import (
	"time"
)

// StrategyStatus defines the lifecycle status of a strategy.
type StrategyStatus string

const (
	StrategyStatusCreated   StrategyStatus = "CREATED"
	StrategyStatusActive    StrategyStatus = "ACTIVE"
	StrategyStatusStopped   StrategyStatus = "STOPPED"
	StrategyStatusCompleted StrategyStatus = "COMPLETED"
)

// GridType defines how grid levels are spaced.
type GridType string

const (
	GridTypeArithmetic GridType = "Arithmetic"
	GridTypeGeometric  GridType = "Geometric"
)

// GridMode restricts which side of the grid is seeded.
type GridMode string

const (
	GridModeNeutral GridMode = "Neutral"
	GridModeLong    GridMode = "Long"
	GridModeShort   GridMode = "Short"
)

// GridConfig 网格策略参数（创建后不可变）
type GridConfig struct {
	GridType       GridType `json:"gridType"`
	UpperPrice     float64  `json:"upperPrice"`
	LowerPrice     float64  `json:"lowerPrice"`
	Levels         int      `json:"levels"`
	Investment     float64  `json:"investment"`
	QtyPerOrder    float64  `json:"qtyPerOrder"`
	StopLoss       float64  `json:"stopLoss"`
	TakeProfit     float64  `json:"takeProfit"`
	Mode           GridMode `json:"mode"`
	EntryCondition string   `json:"entryCondition"`
	TargetMethod   string   `json:"targetMethod"`
}

// GridMonitoring 监控快照。所有聚合字段每次成交后都从订单账本整体重算，
// 从不原地累加，避免漂移。
type GridMonitoring struct {
	TotalPnL        float64   `json:"totalPnL"`
	ROI             float64   `json:"roi"`
	FilledOrders    int       `json:"filledOrders"`
	PendingOrders   int       `json:"pendingOrders"`
	TotalInvestment float64   `json:"totalInvestment"`
	CurrentValue    float64   `json:"currentValue"`
	StartTime       time.Time `json:"startTime"`
	LastUpdate      time.Time `json:"lastUpdate"`
	LastPriceUpdate time.Time `json:"lastPriceUpdate"`
}

// GridStrategy represents a grid-trading strategy instance.
type GridStrategy struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	StrategyID string `gorm:"uniqueIndex" json:"strategyId"`

	Symbol string         `gorm:"index:idx_grid_symbol_status" json:"symbol"`
	Status StrategyStatus `gorm:"index:idx_grid_symbol_status" json:"status"`

	// 最近一次行情价（write-through 缓存，不参与撮合判定）
	CurrentPrice float64 `json:"currentPrice"`

	Config GridConfig `gorm:"serializer:json" json:"config"`

	// 创建时一次性算出的网格价位，ACTIVE 期间不可变
	GridLevels []float64 `gorm:"serializer:json" json:"gridLevels"`

	Monitoring GridMonitoring `gorm:"serializer:json" json:"monitoring"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceStep returns the distance between adjacent grid levels, the increment
// used when deriving the next order after a fill.
func (c GridConfig) PriceStep() float64 {
	if c.Levels <= 0 {
		return 0
	}
	return (c.UpperPrice - c.LowerPrice) / float64(c.Levels+1)
}
