package engine

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"gridtrade.com/internal/config"
	"gridtrade.com/internal/constants"
	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/feed"
	"gridtrade.com/internal/infra"
	"gridtrade.com/internal/model"
	"gridtrade.com/internal/strategies"
)

// Engine 是一个轻量级协调器，负责：
// 1. 启动后台进程（行情订阅、分发、定投排期循环、单例巡检）
// 2. 把行情推进价格缓存并触发网格撮合
// 3. 启动时恢复 ACTIVE 策略
type Engine struct {
	cfg *config.Config

	// 基础设施
	rdb    *redis.Client
	hub    *infra.WsManager
	bus    *event.Bus
	prices *PriceCache

	// 策略引擎
	gridEngine *strategies.GridEngine
	dcaEngine  *strategies.DCAEngine
	schedule   *strategies.Schedule

	// 业务服务 (依赖接口)
	gridService   domain.GridService
	dcaService    domain.DCAService
	marketService domain.MarketService

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine 创建引擎
func NewEngine(
	cfg *config.Config,
	rdb *redis.Client,
	hub *infra.WsManager,
	bus *event.Bus,
	prices *PriceCache,
	gridEngine *strategies.GridEngine,
	dcaEngine *strategies.DCAEngine,
	schedule *strategies.Schedule,
	gridService domain.GridService,
	dcaService domain.DCAService,
	marketService domain.MarketService,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:           cfg,
		rdb:           rdb,
		hub:           hub,
		bus:           bus,
		prices:        prices,
		gridEngine:    gridEngine,
		dcaEngine:     dcaEngine,
		schedule:      schedule,
		gridService:   gridService,
		dcaService:    dcaService,
		marketService: marketService,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start 启动引擎后台进程
func (e *Engine) Start() {
	log.Println("Engine: Starting...")

	// 1. 事件总线出口: WebSocket 推送 + 对外通知队列
	e.wireEventSinks()

	// 2. 恢复 ACTIVE 策略
	e.recoverActiveStrategies()

	// 3. 启动 WebSocket 管理器
	go e.hub.Start()

	// 4. 启动行情订阅与分发
	infra.StartMarketDataSubscriber(e.rdb, e.ctx)
	dispatcher := infra.NewMarketDataDispatcher(e.hub, e)
	go dispatcher.Start()

	// 5. 定投排期循环
	go e.runSchedulerLoop()

	// 6. 网格单例巡检
	go e.runSingletonSweep()

	log.Println("Engine: Started successfully")
}

// wireEventSinks 把策略事件转发到 WebSocket 房间和对外通知队列。
// 推送是尽力而为，失败只记日志。
func (e *Engine) wireEventSinks() {
	forward := func(ctx context.Context, ev event.Event) error {
		e.hub.BroadcastStrategyUpdate(ev.StrategyID, map[string]interface{}{
			"type":       ev.Type,
			"strategyId": ev.StrategyID,
			"payload":    ev.Data,
		})
		if err := infra.PushNotification(ctx, e.rdb, infra.NotificationEvent{
			Type:       ev.Type,
			StrategyID: ev.StrategyID,
			Payload:    ev.Data,
			Timestamp:  ev.Timestamp,
		}); err != nil {
			log.Printf("Engine: Failed to push notification: %v", err)
		}
		return nil
	}

	for _, t := range []string{
		constants.EventOrderCreated,
		constants.EventOrderFilled,
		constants.EventOrderExecuted,
		constants.EventMonitoringUpdate,
		constants.EventStrategyStarted,
		constants.EventStrategyStopped,
		constants.EventStrategyCompleted,
	} {
		e.bus.Subscribe(t, forward)
	}
}

// recoverActiveStrategies 启动时恢复 ACTIVE 策略: 先兜底单例约束，
// 再为每个活跃策略恢复行情订阅，定投策略重新入排期堆。
func (e *Engine) recoverActiveStrategies() {
	if err := e.gridService.EnforceSingleton(e.ctx); err != nil {
		log.Printf("Engine: Singleton enforcement on recovery failed: %v", err)
	}

	grids, err := e.gridService.ListActive(e.ctx)
	if err != nil {
		log.Printf("Engine: Failed to load active grid strategies: %v", err)
	}
	for i := range grids {
		st := &grids[i]
		e.marketService.AddExistingSubscription(st.Symbol)
		log.Printf("Engine: Recovered grid strategy %s on %s (%d pending orders)",
			st.StrategyID, st.Symbol, st.Monitoring.PendingOrders)
	}

	dcas, err := e.dcaService.ListActive(e.ctx)
	if err != nil {
		log.Printf("Engine: Failed to load active dca strategies: %v", err)
	}
	now := time.Now()
	for i := range dcas {
		st := &dcas[i]
		e.marketService.AddExistingSubscription(st.Symbol)

		fireAt := now
		if st.Monitoring.NextOrderTime != nil && st.Monitoring.NextOrderTime.After(now) {
			fireAt = *st.Monitoring.NextOrderTime
		}
		e.schedule.Upsert(st.StrategyID, fireAt)
		log.Printf("Engine: Recovered dca strategy %s on %s, next fire at %s",
			st.StrategyID, st.Symbol, fireAt.Format(time.RFC3339))
	}

	// 计数恢复完成后统一向网关重发订阅指令
	if err := e.marketService.ResubscribeAll(e.ctx); err != nil {
		log.Printf("Engine: Failed to resubscribe recovered symbols: %v", err)
	}

	log.Printf("Engine: Recovery complete (%d grid, %d dca)", len(grids), len(dcas))
}

// OnMarketData 接收并处理行情数据 (由 Dispatcher 调用)
func (e *Engine) OnMarketData(msg infra.MarketMessage) {
	if msg.Symbol == "" {
		return
	}

	tick, err := feed.ParseTick(msg.Symbol, msg.Payload)
	if err != nil {
		log.Printf("Engine: Dropping tick for %s: %v", msg.Symbol, err)
		return
	}

	// 重复或乱序的 tick 不进撮合
	if !e.prices.Update(tick) {
		return
	}

	e.gridEngine.CheckOrderFills(e.ctx, msg.Symbol, tick)
}

// dcaRetryDelay 执行出错时的重试间隔
const dcaRetryDelay = time.Minute

// runSchedulerLoop 定投排期循环: 睡到最早的触发时间，逐个执行到期策略。
// 执行串行化保证同一策略不会并发触发。
func (e *Engine) runSchedulerLoop() {
	log.Println("Engine: DCA scheduler loop started")

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		// 计算下一次唤醒时间
		wait := time.Hour
		if fireAt, ok := e.schedule.Peek(); ok {
			wait = time.Until(fireAt)
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-e.ctx.Done():
			log.Println("Engine: DCA scheduler loop stopped")
			return
		case <-e.schedule.Wake():
			// 排期有变化，重算唤醒时间
		case <-timer.C:
			now := time.Now()
			for {
				strategyID, ok := e.schedule.PopDue(now)
				if !ok {
					break
				}
				next, err := e.dcaEngine.ExecuteDue(e.ctx, strategyID, now)
				if err != nil {
					log.Printf("Engine: DCA execution failed for %s: %v", strategyID, err)
					retry := now.Add(dcaRetryDelay)
					e.schedule.Upsert(strategyID, retry)
					continue
				}
				if next != nil {
					e.schedule.Upsert(strategyID, *next)
				}
			}
		}
	}
}

// runSingletonSweep 周期性兜底网格单例约束
func (e *Engine) runSingletonSweep() {
	interval := time.Duration(e.cfg.Trading.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Engine: Singleton sweep started (every %s)", interval)
	for {
		select {
		case <-e.ctx.Done():
			log.Println("Engine: Singleton sweep stopped")
			return
		case <-ticker.C:
			if err := e.gridService.EnforceSingleton(e.ctx); err != nil {
				log.Printf("Engine: Singleton sweep failed: %v", err)
			}
		}
	}
}

// Stop 停止引擎
func (e *Engine) Stop() {
	log.Println("Engine: Stopping...")
	e.cancel()
}

// LastPrice 供 API 层查询缓存行情
func (e *Engine) LastPrice(symbol string) (model.Tick, bool) {
	return e.prices.Last(symbol)
}
