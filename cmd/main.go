package main

import (
	"context"
	"log"

	"gridtrade.com/internal/api"
	"gridtrade.com/internal/config"
	"gridtrade.com/internal/engine"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/feed"
	"gridtrade.com/internal/infra"
	"gridtrade.com/internal/service"
	"gridtrade.com/internal/strategies"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化基础设施
	// Postgres
	pg, err := infra.NewPostgresClient(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := pg.DB

	// Redis
	rdb := infra.NewRedisClient(cfg.Redis)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// 3. WebSocket 管理器与事件总线
	hub := infra.NewWsManager()
	bus := event.NewBus(1024)

	// 4. 行情侧: 网关客户端 + 价格缓存 + 订阅服务
	feedClient := feed.NewClient(rdb)
	prices := engine.NewPriceCache()
	marketSvc := service.NewMarketService(feedClient)

	// 5. 策略引擎与排期
	locks := strategies.NewStrategyLocks()
	gridEngine := strategies.NewGridEngine(db, bus, locks)
	dcaEngine := strategies.NewDCAEngine(db, bus, locks, prices)
	schedule := strategies.NewSchedule()

	// 6. 业务服务
	gridSvc := service.NewGridService(db, gridEngine, locks, marketSvc, prices, bus, cfg.Trading.MaxActiveGrid)
	dcaSvc := service.NewDCAService(db, locks, marketSvc, schedule, bus, cfg.Trading.MaxActiveDCA)
	backtestSvc := service.NewBacktestService(db)
	instrumentSvc := service.NewInstrumentService(db)

	// 7. 引擎协调器
	eng := engine.NewEngine(cfg, rdb, hub, bus, prices, gridEngine, dcaEngine, schedule, gridSvc, dcaSvc, marketSvc)
	eng.Start()

	// 8. 设置 Fiber 服务器
	app := api.NewServer(cfg, api.Deps{
		GridSvc:       gridSvc,
		DCASvc:        dcaSvc,
		BacktestSvc:   backtestSvc,
		InstrumentSvc: instrumentSvc,
		MarketSvc:     marketSvc,
		Prices:        prices,
		Hub:           hub,
	})

	// 9. 启动服务器
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(cfg.Server.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
