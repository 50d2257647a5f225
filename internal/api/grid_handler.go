package api

import (
	"github.com/gofiber/fiber/v2"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
)

// GridHandler 处理网格策略相关的 HTTP 请求
type GridHandler struct {
	gridSvc domain.GridService
}

// NewGridHandler 创建网格策略处理器
func NewGridHandler(gridSvc domain.GridService) *GridHandler {
	return &GridHandler{gridSvc: gridSvc}
}

// CreateStrategy 创建网格策略
// POST /api/grid-strategy/create
func (h *GridHandler) CreateStrategy(c *fiber.Ctx) error {
	var req struct {
		Symbol string           `json:"symbol"`
		Config model.GridConfig `json:"config"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	st, err := h.gridSvc.CreateStrategy(c.Context(), req.Symbol, req.Config)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(st)
}

// StartLive 启动实盘
// POST /api/grid-strategy/start-live
func (h *GridHandler) StartLive(c *fiber.Ctx) error {
	var req struct {
		StrategyID string `json:"strategyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	st, err := h.gridSvc.StartLive(c.Context(), req.StrategyID)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"Status": true, "Strategy": st})
}

// StopLive 停止实盘
// POST /api/grid-strategy/stop-live
func (h *GridHandler) StopLive(c *fiber.Ctx) error {
	var req struct {
		StrategyID string `json:"strategyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	cancelled, err := h.gridSvc.StopLive(c.Context(), req.StrategyID)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"Status": true, "CancelledOrders": cancelled})
}

// GetStrategy 获取策略详情
// GET /api/grid-strategy/:id
func (h *GridHandler) GetStrategy(c *fiber.Ctx) error {
	st, err := h.gridSvc.GetStrategy(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(st)
}

// GetOrders 获取策略订单（附成交/挂单拆分）
// GET /api/grid-strategy/:id/orders
func (h *GridHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.gridSvc.GetOrders(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	filled := make([]model.GridOrder, 0)
	pending := make([]model.GridOrder, 0)
	for _, o := range orders {
		switch o.Status {
		case model.OrderStatusFilled:
			filled = append(filled, o)
		case model.OrderStatusPending:
			pending = append(pending, o)
		}
	}

	return c.JSON(fiber.Map{
		"Orders":  orders,
		"Filled":  filled,
		"Pending": pending,
	})
}

// ListActive 获取活跃策略列表
// GET /api/grid-strategies/active
func (h *GridHandler) ListActive(c *fiber.Ctx) error {
	active, err := h.gridSvc.ListActive(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Strategies": active, "Count": len(active)})
}
