package event

import "time"

// OrderFilledPayload 网格订单成交事件数据
type OrderFilledPayload struct {
	StrategyID string    `json:"strategyId"`
	OrderID    string    `json:"orderId"`
	Symbol     string    `json:"symbol"`
	Type       string    `json:"type"`
	GridLevel  float64   `json:"gridLevel"`
	FillPrice  float64   `json:"fillPrice"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	FillTime   time.Time `json:"fillTime"`
}

// OrderExecutedPayload 定投订单执行事件数据
type OrderExecutedPayload struct {
	StrategyID  string    `json:"strategyId"`
	OrderID     string    `json:"orderId"`
	Symbol      string    `json:"symbol"`
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	OrderNumber int       `json:"orderNumber"`
	FillTime    time.Time `json:"fillTime"`
}

// MonitoringPayload 策略监控刷新事件数据
type MonitoringPayload struct {
	StrategyID string      `json:"strategyId"`
	Monitoring interface{} `json:"monitoring"`
}

// StrategyStatusPayload 策略状态切换事件数据
type StrategyStatusPayload struct {
	StrategyID string `json:"strategyId"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}
