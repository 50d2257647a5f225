package api

import (
	"github.com/gofiber/fiber/v2"

	"gridtrade.com/internal/model"
	"gridtrade.com/internal/service"
)

// BacktestHandler 处理回测请求
type BacktestHandler struct {
	backtestSvc *service.BacktestServiceImpl
}

// NewBacktestHandler 创建回测处理器
func NewBacktestHandler(backtestSvc *service.BacktestServiceImpl) *BacktestHandler {
	return &BacktestHandler{backtestSvc: backtestSvc}
}

// RunGrid 网格回测
// POST /api/grid-strategy/backtest
func (h *BacktestHandler) RunGrid(c *fiber.Ctx) error {
	var req struct {
		StrategyID     string           `json:"strategyId"`
		Symbol         string           `json:"symbol"`
		Config         model.GridConfig `json:"config"`
		HistoricalData []model.Candle   `json:"historicalData"`
		Period         string           `json:"period"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	result, err := h.backtestSvc.RunGrid(c.Context(), req.StrategyID, req.Symbol, req.Config, req.HistoricalData, req.Period)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"Results": result.Results,
		"Trades":  result.Trades,
	})
}

// RunDCA 定投回测
// POST /api/dca-strategy/backtest
func (h *BacktestHandler) RunDCA(c *fiber.Ctx) error {
	var req struct {
		StrategyID     string          `json:"strategyId"`
		Symbol         string          `json:"symbol"`
		Config         model.DCAConfig `json:"config"`
		HistoricalData []model.Candle  `json:"historicalData"`
		Period         string          `json:"period"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	result, err := h.backtestSvc.RunDCA(c.Context(), req.StrategyID, req.Symbol, req.Config, req.HistoricalData, req.Period)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"Results": result.Results,
		"Trades":  result.Trades,
	})
}
