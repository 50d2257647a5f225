package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"gridtrade.com/internal/config"
	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/infra"
	"gridtrade.com/internal/service"
)

// Deps 是 HTTP 层需要的全部依赖
type Deps struct {
	GridSvc       domain.GridService
	DCASvc        domain.DCAService
	BacktestSvc   *service.BacktestServiceImpl
	InstrumentSvc *service.InstrumentServiceImpl
	MarketSvc     domain.MarketService
	Prices        domain.PriceSource
	Hub           *infra.WsManager
}

func NewServer(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.Server.AppName,
	})

	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})

	// Initialize WebSocket
	InitWebsocket(app, deps.Hub, deps.MarketSvc)

	gridHandler := NewGridHandler(deps.GridSvc)
	dcaHandler := NewDCAHandler(deps.DCASvc)
	backtestHandler := NewBacktestHandler(deps.BacktestSvc)
	instrumentHandler := NewInstrumentHandler(deps.InstrumentSvc, deps.Prices)

	api := app.Group("/api")

	// Grid Strategy Routes
	api.Post("/grid-strategy/create", gridHandler.CreateStrategy)
	api.Post("/grid-strategy/start-live", gridHandler.StartLive)
	api.Post("/grid-strategy/stop-live", gridHandler.StopLive)
	api.Post("/grid-strategy/backtest", backtestHandler.RunGrid)
	api.Get("/grid-strategy/:id", gridHandler.GetStrategy)
	api.Get("/grid-strategy/:id/orders", gridHandler.GetOrders)
	api.Get("/grid-strategies/active", gridHandler.ListActive)

	// DCA Strategy Routes
	api.Post("/dca-strategy/create", dcaHandler.CreateStrategy)
	api.Post("/dca-strategy/start-live", dcaHandler.StartLive)
	api.Post("/dca-strategy/stop-live", dcaHandler.StopLive)
	api.Post("/dca-strategy/backtest", backtestHandler.RunDCA)
	api.Get("/dca-strategy/:id", dcaHandler.GetStrategy)
	api.Get("/dca-strategy/:id/orders", dcaHandler.GetOrders)
	api.Get("/dca-strategies/active", dcaHandler.ListActive)

	// Instrument / Market Routes
	api.Get("/instruments", instrumentHandler.List)
	api.Post("/instruments/sync", instrumentHandler.Sync)
	api.Get("/instruments/:symbol", instrumentHandler.Get)
	api.Get("/live/:symbol", instrumentHandler.LivePrice)

	return app
}
