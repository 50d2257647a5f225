package api

import (
	"github.com/gofiber/fiber/v2"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
)

// DCAHandler 处理定投策略相关的 HTTP 请求
type DCAHandler struct {
	dcaSvc domain.DCAService
}

// NewDCAHandler 创建定投策略处理器
func NewDCAHandler(dcaSvc domain.DCAService) *DCAHandler {
	return &DCAHandler{dcaSvc: dcaSvc}
}

// CreateStrategy 创建定投策略
// POST /api/dca-strategy/create
func (h *DCAHandler) CreateStrategy(c *fiber.Ctx) error {
	var req struct {
		Symbol string          `json:"symbol"`
		Config model.DCAConfig `json:"config"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	st, err := h.dcaSvc.CreateStrategy(c.Context(), req.Symbol, req.Config)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(st)
}

// StartLive 启动定投
// POST /api/dca-strategy/start-live
func (h *DCAHandler) StartLive(c *fiber.Ctx) error {
	var req struct {
		StrategyID string `json:"strategyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	st, err := h.dcaSvc.StartLive(c.Context(), req.StrategyID)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"Status": true, "Strategy": st})
}

// StopLive 停止定投
// POST /api/dca-strategy/stop-live
func (h *DCAHandler) StopLive(c *fiber.Ctx) error {
	var req struct {
		StrategyID string `json:"strategyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	cancelled, err := h.dcaSvc.StopLive(c.Context(), req.StrategyID)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"Status": true, "CancelledOrders": cancelled})
}

// GetStrategy 获取策略详情
// GET /api/dca-strategy/:id
func (h *DCAHandler) GetStrategy(c *fiber.Ctx) error {
	st, err := h.dcaSvc.GetStrategy(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(st)
}

// GetOrders 获取策略订单
// GET /api/dca-strategy/:id/orders
func (h *DCAHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.dcaSvc.GetOrders(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Orders": orders, "Count": len(orders)})
}

// ListActive 获取活跃策略列表
// GET /api/dca-strategies/active
func (h *DCAHandler) ListActive(c *fiber.Ctx) error {
	active, err := h.dcaSvc.ListActive(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Strategies": active, "Count": len(active)})
}
