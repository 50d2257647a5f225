package strategies

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"gridtrade.com/internal/constants"
	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/model"
)

// DCAEngine executes dollar-cost-averaging strategies: each due execution
// buys (or sells) a fixed amount at the last cached price, records an
// EXECUTED order and reschedules one interval ahead.
type DCAEngine struct {
	db     *gorm.DB
	bus    *event.Bus
	locks  *StrategyLocks
	prices domain.PriceSource
}

func NewDCAEngine(db *gorm.DB, bus *event.Bus, locks *StrategyLocks, prices domain.PriceSource) *DCAEngine {
	return &DCAEngine{db: db, bus: bus, locks: locks, prices: prices}
}

// priceRetryDelay 行情缓存为空时的重试间隔
const priceRetryDelay = 30 * time.Second

// ShouldExecute reports whether a strategy is allowed to execute at `now`,
// with a reason when it is not. Terminal reasons ("completed", "stop_loss",
// "take_profit") mean the strategy should leave the schedule.
func (e *DCAEngine) ShouldExecute(st *model.DCAStrategy, now time.Time) (bool, string) {
	if st.Status != model.StrategyStatusActive {
		return false, "not_active"
	}

	cfg := st.Config
	m := st.Monitoring

	if cfg.EndCondition == model.EndConditionOrderCount && cfg.MaxOrders > 0 && m.ExecutedOrders >= cfg.MaxOrders {
		return false, "completed"
	}
	if cfg.EnableStopLoss && m.ROI <= -cfg.StopLoss {
		return false, "stop_loss"
	}
	if cfg.EnableTakeProfit && m.ROI >= cfg.TakeProfit {
		return false, "take_profit"
	}
	if m.NextOrderTime != nil && now.Before(*m.NextOrderTime) {
		return false, "not_due"
	}
	return true, ""
}

// ExecuteDue runs one scheduler firing for the strategy. It returns the next
// time the strategy should fire, or nil when it must leave the schedule
// (stopped, completed, stop-loss/take-profit hit).
func (e *DCAEngine) ExecuteDue(ctx context.Context, strategyID string, now time.Time) (*time.Time, error) {
	e.locks.Lock(strategyID)
	defer e.locks.Unlock(strategyID)

	var st model.DCAStrategy
	err := e.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&st).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dca strategy %s: %w", strategyID, err)
	}

	ok, reason := e.ShouldExecute(&st, now)
	if !ok {
		switch reason {
		case "completed":
			if err := e.transition(ctx, &st, model.StrategyStatusCompleted, reason); err != nil {
				return nil, err
			}
			return nil, nil
		case "stop_loss", "take_profit":
			if err := e.transition(ctx, &st, model.StrategyStatusStopped, reason); err != nil {
				return nil, err
			}
			return nil, nil
		case "not_due":
			next := *st.Monitoring.NextOrderTime
			return &next, nil
		default: // not_active
			return nil, nil
		}
	}

	tick, found := e.prices.Last(st.Symbol)
	if !found || tick.LTP <= 0 {
		// 没有行情就不执行，稍后重试而不是跳过整个周期
		log.Printf("DCAEngine: No cached price for %s, retrying strategy %s later", st.Symbol, strategyID)
		retry := now.Add(priceRetryDelay)
		return &retry, nil
	}

	order, err := e.execute(ctx, &st, tick.LTP, now)
	if err != nil {
		return nil, err
	}

	if err := e.RecomputeMonitoring(ctx, &st, tick.LTP); err != nil {
		log.Printf("DCAEngine: Failed to recompute monitoring for %s: %v", strategyID, err)
	}

	next := now.Add(st.Config.Interval())
	st.Monitoring.NextOrderTime = &next
	if err := e.db.WithContext(ctx).Model(&st).Select("monitoring").Updates(&st).Error; err != nil {
		log.Printf("DCAEngine: Failed to save next order time for %s: %v", strategyID, err)
	}

	e.bus.Publish(event.Event{
		Type:       constants.EventOrderExecuted,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.OrderExecutedPayload{
			StrategyID:  st.StrategyID,
			OrderID:     order.OrderID,
			Symbol:      st.Symbol,
			Amount:      order.Amount,
			Price:       order.FillPrice,
			Quantity:    order.Quantity,
			OrderNumber: order.OrderNumber,
			FillTime:    now,
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

	// 达到目标单数后直接完结，不再排期
	cfg := st.Config
	if cfg.EndCondition == model.EndConditionOrderCount && cfg.MaxOrders > 0 &&
		st.Monitoring.ExecutedOrders >= cfg.MaxOrders {
		if err := e.transition(ctx, &st, model.StrategyStatusCompleted, "completed"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &next, nil
}

// execute records a single EXECUTED order at the given price.
func (e *DCAEngine) execute(ctx context.Context, st *model.DCAStrategy, price float64, now time.Time) (*model.DCAOrder, error) {
	qty := round4(st.Config.InvestmentAmount / price)
	amount := round2(price * qty)

	side := st.Config.OrderType
	if side == "" {
		side = model.OrderTypeBuy
	}

	order := model.DCAOrder{
		OrderID:       newOrderID(),
		StrategyID:    st.StrategyID,
		Symbol:        st.Symbol,
		Type:          side,
		Price:         price,
		Quantity:      qty,
		Amount:        amount,
		Status:        model.OrderStatusExecuted,
		OrderNumber:   st.Monitoring.ExecutedOrders + 1,
		ScheduledTime: now,
		FillPrice:     price,
		FillTime:      &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create dca order: %w", err)
	}

	log.Printf("DCAEngine: Strategy %s executed order #%d: %.4f @ %.2f (amount %.2f)",
		st.StrategyID, order.OrderNumber, qty, price, amount)
	return &order, nil
}

// RecomputeMonitoring rebuilds the monitoring snapshot from the EXECUTED
// order ledger, valuing the accumulated position at lastPrice.
func (e *DCAEngine) RecomputeMonitoring(ctx context.Context, st *model.DCAStrategy, lastPrice float64) error {
	var orders []model.DCAOrder
	err := e.db.WithContext(ctx).
		Where("strategy_id = ? AND status = ?", st.StrategyID, model.OrderStatusExecuted).
		Find(&orders).Error
	if err != nil {
		return fmt.Errorf("failed to load dca orders: %w", err)
	}

	m := st.Monitoring
	m.ExecutedOrders = len(orders)
	totalInvestment := 0.0
	totalQuantity := 0.0
	for i := range orders {
		totalInvestment += orders[i].Amount
		totalQuantity += orders[i].Quantity
	}

	m.TotalInvestment = round2(totalInvestment)
	m.TotalQuantity = round4(totalQuantity)
	if totalQuantity > 0 {
		m.AveragePrice = round2(totalInvestment / totalQuantity)
	} else {
		m.AveragePrice = 0
	}
	m.CurrentValue = round2(totalQuantity * lastPrice)
	m.TotalPnL = round2(m.CurrentValue - m.TotalInvestment)
	if m.TotalInvestment > 0 {
		m.ROI = round2(m.TotalPnL / m.TotalInvestment * 100)
	} else {
		m.ROI = 0
	}
	m.LastUpdate = time.Now()

	st.Monitoring = m
	if err := e.db.WithContext(ctx).Model(st).Select("monitoring").Updates(st).Error; err != nil {
		return fmt.Errorf("failed to save dca monitoring: %w", err)
	}
	return nil
}

func (e *DCAEngine) transition(ctx context.Context, st *model.DCAStrategy, status model.StrategyStatus, reason string) error {
	if err := e.db.WithContext(ctx).Model(st).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to transition strategy %s to %s: %w", st.StrategyID, status, err)
	}
	st.Status = status
	log.Printf("DCAEngine: Strategy %s -> %s (%s)", st.StrategyID, status, reason)

	evType := constants.EventStrategyStopped
	if status == model.StrategyStatusCompleted {
		evType = constants.EventStrategyCompleted
	}
	e.bus.Publish(event.Event{
		Type:       evType,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.StrategyStatusPayload{
			StrategyID: st.StrategyID,
			Status:     string(status),
			Reason:     reason,
		},
	})
	return nil
}
