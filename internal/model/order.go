package model

import (
	"time"
)

type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// OrderStatus defines the lifecycle status of a synthetic order.
// PENDING is the only non-terminal state; FILLED/EXECUTED/CANCELLED are
// terminal and never mutated afterwards.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"   // grid orders
	OrderStatusExecuted  OrderStatus = "EXECUTED" // DCA orders (no pending phase)
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// GridOrder represents a synthetic grid order waiting for a price match.
type GridOrder struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	OrderID    string `gorm:"uniqueIndex" json:"orderId"`
	StrategyID string `gorm:"index:idx_grid_order_strategy_status" json:"strategyId"`
	Symbol     string `gorm:"index:idx_grid_order_symbol_status" json:"symbol"`

	Type     OrderType `gorm:"type:varchar(4)" json:"type"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`

	Status OrderStatus `gorm:"type:varchar(10);index:idx_grid_order_strategy_status;index:idx_grid_order_symbol_status" json:"status"`

	// 1-based index into the strategy's gridLevels at creation time
	GridLevel int `json:"gridLevel"`

	FillPrice    float64    `json:"fillPrice"`
	FillQuantity float64    `json:"fillQuantity"`
	FillTime     *time.Time `json:"fillTime,omitempty"`

	// 0 for BUY fills; for SELL fills computed against the most recent
	// FILLED BUY of the same strategy
	PnL float64 `gorm:"column:pnl" json:"pnl"`

	LastCheckedPrice float64   `json:"lastCheckedPrice"`
	LastCheckedTime  time.Time `json:"lastCheckedTime"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsTerminal reports whether the order can no longer transition.
func (o *GridOrder) IsTerminal() bool {
	return o.Status != OrderStatusPending
}

// DCAOrder represents one scheduled dollar-cost-averaging execution.
type DCAOrder struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	OrderID    string `gorm:"uniqueIndex" json:"orderId"`
	StrategyID string `gorm:"index:idx_dca_order_strategy_status" json:"strategyId"`
	Symbol     string `gorm:"index" json:"symbol"`

	Type     OrderType `gorm:"type:varchar(4)" json:"type"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	// Amount = price × quantity at schedule time
	Amount float64 `json:"amount"`

	Status OrderStatus `gorm:"type:varchar(10);index:idx_dca_order_strategy_status" json:"status"`

	// 1-based sequence within the strategy
	OrderNumber   int       `json:"orderNumber"`
	ScheduledTime time.Time `json:"scheduledTime"`

	FillPrice float64    `json:"fillPrice"`
	FillTime  *time.Time `json:"fillTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
