package strategies

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gridtrade.com/internal/constants"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/model"
)

// fillTolerance 撮合容差: 报价进入委托价 ±0.1% 区间即视为成交
const fillTolerance = 0.001

// GridEngine drives the synthetic matching of grid strategies: seeding the
// initial order book, matching pending orders against incoming ticks,
// chaining the opposite-side order after each fill and recomputing the
// monitoring snapshot from the order ledger.
type GridEngine struct {
	db    *gorm.DB
	bus   *event.Bus
	locks *StrategyLocks
}

func NewGridEngine(db *gorm.DB, bus *event.Bus, locks *StrategyLocks) *GridEngine {
	return &GridEngine{db: db, bus: bus, locks: locks}
}

func newOrderID() string {
	return "ord_" + uuid.NewString()
}

// SeedOrders creates the initial PENDING orders for a strategy around the
// reference price: BUY below, SELL above, levels equal to the reference are
// skipped. Long mode seeds only the BUY side, Short mode only the SELL side.
func (e *GridEngine) SeedOrders(ctx context.Context, st *model.GridStrategy, refPrice float64) ([]model.GridOrder, error) {
	qty := QuantityPerLevel(st.Config, refPrice)
	if qty <= 0 {
		return nil, fmt.Errorf("grid strategy %s: non-positive order quantity", st.StrategyID)
	}

	now := time.Now()
	orders := make([]model.GridOrder, 0, len(st.GridLevels))
	for i, level := range st.GridLevels {
		var side model.OrderType
		switch {
		case level < refPrice:
			side = model.OrderTypeBuy
		case level > refPrice:
			side = model.OrderTypeSell
		default:
			// 网格价位恰好等于基准价: 不挂单
			continue
		}

		// Long 只做买入腿, Short 只做卖出腿
		if st.Config.Mode == model.GridModeLong && side == model.OrderTypeSell {
			continue
		}
		if st.Config.Mode == model.GridModeShort && side == model.OrderTypeBuy {
			continue
		}

		orders = append(orders, model.GridOrder{
			OrderID:    newOrderID(),
			StrategyID: st.StrategyID,
			Symbol:     st.Symbol,
			Type:       side,
			Price:      level,
			Quantity:   qty,
			Status:     model.OrderStatusPending,
			GridLevel:  i + 1,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if len(orders) > 0 {
		if err := e.db.WithContext(ctx).Create(&orders).Error; err != nil {
			return nil, fmt.Errorf("failed to seed grid orders: %w", err)
		}
	}

	log.Printf("GridEngine: Seeded %d orders for strategy %s around %.2f", len(orders), st.StrategyID, refPrice)
	return orders, nil
}

// CheckOrderFills matches every ACTIVE strategy on the symbol against a new
// tick. One strategy failing is logged and does not stop the others.
func (e *GridEngine) CheckOrderFills(ctx context.Context, symbol string, tick model.Tick) {
	var strategies []model.GridStrategy
	err := e.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, model.StrategyStatusActive).
		Find(&strategies).Error
	if err != nil {
		log.Printf("GridEngine: Failed to load active strategies for %s: %v", symbol, err)
		return
	}

	for i := range strategies {
		if err := e.checkStrategy(ctx, &strategies[i], tick); err != nil {
			log.Printf("GridEngine: Error processing strategy %s: %v", strategies[i].StrategyID, err)
		}
	}
}

func (e *GridEngine) checkStrategy(ctx context.Context, st *model.GridStrategy, tick model.Tick) error {
	e.locks.Lock(st.StrategyID)
	defer e.locks.Unlock(st.StrategyID)

	now := time.Now()

	// Write-through 行情缓存字段（不参与撮合判定）
	// monitoring 是 serializer:json 列, 必须走结构体更新才会序列化
	st.CurrentPrice = tick.LTP
	st.Monitoring.LastPriceUpdate = now
	st.UpdatedAt = now
	if err := e.db.WithContext(ctx).Model(st).
		Select("current_price", "monitoring", "updated_at").
		Updates(st).Error; err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}

	var pending []model.GridOrder
	err := e.db.WithContext(ctx).
		Where("strategy_id = ? AND status = ?", st.StrategyID, model.OrderStatusPending).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("failed to load pending orders: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	// 离报价最近的委托优先撮合，距离相同按创建时间先后
	sort.Slice(pending, func(i, j int) bool {
		di := math.Abs(pending[i].Price - tick.LTP)
		dj := math.Abs(pending[j].Price - tick.LTP)
		if di != dj {
			return di < dj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	for i := range pending {
		order := &pending[i]

		tol := order.Price * fillTolerance
		matched := false
		switch order.Type {
		case model.OrderTypeBuy:
			matched = tick.LTP <= order.Price+tol
		case model.OrderTypeSell:
			matched = tick.LTP >= order.Price-tol
		}

		if matched {
			if err := e.fillOrder(ctx, st, order, tick.LTP, now); err != nil {
				log.Printf("GridEngine: Failed to fill order %s: %v", order.OrderID, err)
			}
			continue
		}

		// 未成交也记录本次检查，便于排查撮合行为
		e.db.WithContext(ctx).Model(order).
			Updates(map[string]interface{}{
				"last_checked_price": tick.LTP,
				"last_checked_time":  now,
			})
	}

	return nil
}

// fillOrder transitions an order PENDING→FILLED. The update is guarded on the
// current status so a concurrent fill or cancel makes this a no-op instead of
// a double fill.
func (e *GridEngine) fillOrder(ctx context.Context, st *model.GridStrategy, order *model.GridOrder, price float64, now time.Time) error {
	pnl := 0.0
	if order.Type == model.OrderTypeSell {
		// 卖出盈亏对最近一笔已成交的买单计算
		var lastBuy model.GridOrder
		err := e.db.WithContext(ctx).
			Where("strategy_id = ? AND type = ? AND status = ?",
				st.StrategyID, model.OrderTypeBuy, model.OrderStatusFilled).
			Order("fill_time DESC").
			First(&lastBuy).Error
		if err == nil {
			pnl = round2((price - lastBuy.FillPrice) * order.Quantity)
		}
	}

	res := e.db.WithContext(ctx).Model(&model.GridOrder{}).
		Where("order_id = ? AND status = ?", order.OrderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":             model.OrderStatusFilled,
			"fill_price":         price,
			"fill_quantity":      order.Quantity,
			"fill_time":          now,
			"pnl":                pnl,
			"last_checked_price": price,
			"last_checked_time":  now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark order filled: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 已被并发成交或撤销，状态不回退
		return nil
	}

	order.Status = model.OrderStatusFilled
	order.FillPrice = price
	order.FillQuantity = order.Quantity
	order.FillTime = &now
	order.PnL = pnl

	log.Printf("GridEngine: Order %s %s filled at %.2f (level %.2f, pnl %.2f)",
		order.OrderID, order.Type, price, order.Price, pnl)

	if err := e.createNextGridOrder(ctx, st, order, now); err != nil {
		log.Printf("GridEngine: Failed to create next order for %s: %v", order.OrderID, err)
	}
	if err := e.RecomputeMonitoring(ctx, st); err != nil {
		log.Printf("GridEngine: Failed to recompute monitoring for %s: %v", st.StrategyID, err)
	}

	e.bus.Publish(event.Event{
		Type:       constants.EventOrderFilled,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.OrderFilledPayload{
			StrategyID: st.StrategyID,
			OrderID:    order.OrderID,
			Symbol:     st.Symbol,
			Type:       string(order.Type),
			GridLevel:  order.Price,
			FillPrice:  price,
			Quantity:   order.Quantity,
			PnL:        pnl,
			FillTime:   now,
		},
	})
	e.bus.Publish(event.Event{
		Type:       constants.EventMonitoringUpdate,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.MonitoringPayload{
			StrategyID: st.StrategyID,
			Monitoring: st.Monitoring,
		},
	})

	return nil
}

// createNextGridOrder places the opposite-side order one grid step away from
// the actual fill price. A crossing tick fills away from the trigger level,
// so the chain follows where the fill landed, not where the order sat.
// Prices outside the configured band are skipped silently, which is how the
// grid drains at its edges.
func (e *GridEngine) createNextGridOrder(ctx context.Context, st *model.GridStrategy, filled *model.GridOrder, now time.Time) error {
	step := st.Config.PriceStep()
	if step <= 0 {
		return nil
	}

	var side model.OrderType
	var price float64
	if filled.Type == model.OrderTypeBuy {
		side = model.OrderTypeSell
		price = round2(filled.FillPrice + step)
	} else {
		side = model.OrderTypeBuy
		price = round2(filled.FillPrice - step)
	}

	if price < st.Config.LowerPrice || price > st.Config.UpperPrice {
		return nil
	}

	next := model.GridOrder{
		OrderID:    newOrderID(),
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Type:       side,
		Price:      price,
		Quantity:   filled.Quantity,
		Status:     model.OrderStatusPending,
		GridLevel:  filled.GridLevel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.db.WithContext(ctx).Create(&next).Error; err != nil {
		return fmt.Errorf("failed to create next grid order: %w", err)
	}

	log.Printf("GridEngine: Created next %s order at %.2f for strategy %s", side, price, st.StrategyID)

	e.bus.Publish(event.Event{
		Type:       constants.EventOrderCreated,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data:       next,
	})
	return nil
}

// CancelPending cancels every PENDING order of a strategy and returns how
// many were cancelled.
func (e *GridEngine) CancelPending(ctx context.Context, strategyID string) (int64, error) {
	res := e.db.WithContext(ctx).Model(&model.GridOrder{}).
		Where("strategy_id = ? AND status = ?", strategyID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel pending orders: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecomputeMonitoring rebuilds the monitoring snapshot for a strategy from
// its full order ledger. Aggregates are never incremented in place.
func (e *GridEngine) RecomputeMonitoring(ctx context.Context, st *model.GridStrategy) error {
	var orders []model.GridOrder
	err := e.db.WithContext(ctx).
		Where("strategy_id = ?", st.StrategyID).
		Find(&orders).Error
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	m := st.Monitoring
	m.FilledOrders = 0
	m.PendingOrders = 0
	totalPnL := 0.0
	for i := range orders {
		switch orders[i].Status {
		case model.OrderStatusFilled:
			m.FilledOrders++
			totalPnL += orders[i].PnL
		case model.OrderStatusPending:
			m.PendingOrders++
		}
	}

	m.TotalPnL = round2(totalPnL)
	m.TotalInvestment = st.Config.Investment
	m.CurrentValue = round2(m.TotalInvestment + m.TotalPnL)
	if m.TotalInvestment > 0 {
		m.ROI = round2(m.TotalPnL / m.TotalInvestment * 100)
	} else {
		m.ROI = 0
	}
	m.LastUpdate = time.Now()

	st.Monitoring = m
	if err := e.db.WithContext(ctx).Model(st).
		Select("monitoring").Updates(st).Error; err != nil {
		return fmt.Errorf("failed to save monitoring: %w", err)
	}
	return nil
}
