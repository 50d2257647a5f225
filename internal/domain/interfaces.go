package domain

import (
	"context"
	"time"

	"gridtrade.com/internal/model"
)

// ===========================
// 网格策略服务接口
// ===========================

// GridService 定义网格策略相关的业务操作
type GridService interface {
	// 创建策略（校验配置并预计算网格价位）
	CreateStrategy(ctx context.Context, symbol string, cfg model.GridConfig) (*model.GridStrategy, error)
	// 启动实盘（幂等：已存在的策略恢复运行，不重复建单）
	StartLive(ctx context.Context, strategyID string) (*model.GridStrategy, error)
	// 停止实盘，返回被取消的挂单数量
	StopLive(ctx context.Context, strategyID string) (int64, error)
	// 获取策略详情
	GetStrategy(ctx context.Context, strategyID string) (*model.GridStrategy, error)
	// 获取策略全部订单
	GetOrders(ctx context.Context, strategyID string) ([]model.GridOrder, error)
	// 获取活跃策略列表
	ListActive(ctx context.Context) ([]model.GridStrategy, error)
	// 强制单例约束：仅保留最近创建的 ACTIVE 策略
	EnforceSingleton(ctx context.Context) error
}

// ===========================
// DCA 策略服务接口
// ===========================

// DCAService 定义定投策略相关的业务操作
type DCAService interface {
	CreateStrategy(ctx context.Context, symbol string, cfg model.DCAConfig) (*model.DCAStrategy, error)
	StartLive(ctx context.Context, strategyID string) (*model.DCAStrategy, error)
	StopLive(ctx context.Context, strategyID string) (int64, error)
	GetStrategy(ctx context.Context, strategyID string) (*model.DCAStrategy, error)
	GetOrders(ctx context.Context, strategyID string) ([]model.DCAOrder, error)
	ListActive(ctx context.Context) ([]model.DCAStrategy, error)
}

// ===========================
// 行情接口
// ===========================

// PriceSource 提供最新已知行情（最终一致的只读视图）
type PriceSource interface {
	Last(symbol string) (model.Tick, bool)
}

// FeedClient 定义与行情网关通信的接口
type FeedClient interface {
	// 订阅行情
	Subscribe(ctx context.Context, symbol string) error
	// 取消订阅
	Unsubscribe(ctx context.Context, symbol string) error
}

// MarketService 管理带引用计数的行情订阅
type MarketService interface {
	Subscribe(ctx context.Context, symbol string) error
	Unsubscribe(ctx context.Context, symbol string) error
	// 恢复启动前已存在的订阅（只增加计数，不发网关指令）
	AddExistingSubscription(symbol string)
	// 对所有活跃合约重发订阅指令（启动恢复或网关重连后调用）
	ResubscribeAll(ctx context.Context) error
	GetActiveSymbols() []string
}

// Scheduler 定投排期接口，由引擎的时间堆实现
type Scheduler interface {
	Upsert(strategyID string, fireAt time.Time)
	Remove(strategyID string)
}

// ===========================
// 推送接口
// ===========================

// Notifier 定义推送通知的接口（尽力而为，不提供投递保证）
type Notifier interface {
	// 广播消息给所有连接的客户端
	BroadcastToAll(data interface{})
	// 广播行情数据
	BroadcastMarketData(symbol string, data interface{})
	// 推送策略维度的事件（成交、监控更新）
	BroadcastStrategyUpdate(strategyID string, data interface{})
}
