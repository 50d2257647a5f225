package constants

// 事件类型常量
const (
	// 行情事件
	EventMarketDataReceived = "market.data.received"

	// 订单事件
	EventOrderCreated  = "order_created"
	EventOrderFilled   = "order_filled"
	EventOrderExecuted = "order_executed"
	EventOrderCanceled = "order_canceled"

	// 监控事件
	EventMonitoringUpdate = "monitoring_update"

	// 策略事件
	EventStrategyStarted   = "strategy_started"
	EventStrategyStopped   = "strategy_stopped"
	EventStrategyCompleted = "strategy_completed"
)
