package api

import (
	"github.com/gofiber/fiber/v2"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
	"gridtrade.com/internal/service"
)

// InstrumentHandler 处理合约与行情查询
type InstrumentHandler struct {
	instrumentSvc *service.InstrumentServiceImpl
	prices        domain.PriceSource
}

// NewInstrumentHandler 创建合约处理器
func NewInstrumentHandler(instrumentSvc *service.InstrumentServiceImpl, prices domain.PriceSource) *InstrumentHandler {
	return &InstrumentHandler{instrumentSvc: instrumentSvc, prices: prices}
}

// List 分页获取可交易合约列表
// GET /api/instruments?page=1&pageSize=50
func (h *InstrumentHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("pageSize", 50)

	instruments, total, err := h.instrumentSvc.List(c.Context(), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, instruments, page, pageSize, total)
}

// Get 按 symbol 查询单个合约
// GET /api/instruments/:symbol
func (h *InstrumentHandler) Get(c *fiber.Ctx) error {
	inst, err := h.instrumentSvc.Get(c.Context(), c.Params("symbol"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(inst)
}

// Sync 批量同步合约目录（来自网关的合约快照）
// POST /api/instruments/sync
func (h *InstrumentHandler) Sync(c *fiber.Ctx) error {
	var req struct {
		Instruments []model.Instrument `json:"instruments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}
	if len(req.Instruments) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "instruments is required"})
	}

	if err := h.instrumentSvc.Upsert(c.Context(), req.Instruments); err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Synced": len(req.Instruments)})
}

// LivePrice 查询缓存的最新行情
// GET /api/live/:symbol
func (h *InstrumentHandler) LivePrice(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	tick, ok := h.prices.Last(symbol)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"Error": "no live data for " + symbol})
	}
	return c.JSON(tick)
}
