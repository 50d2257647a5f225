package service

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
	"gridtrade.com/internal/strategies"
)

// DCAServiceImpl 实现 domain.DCAService 接口
// 订单的实际执行由 DCAEngine 在排期循环中完成，这里只管生命周期与排期。
type DCAServiceImpl struct {
	db            *gorm.DB
	locks         *strategies.StrategyLocks
	marketService domain.MarketService
	scheduler     domain.Scheduler
	bus           *event.Bus

	// 允许同时 ACTIVE 的定投策略数量, <=0 表示不限制
	maxActive int
}

// NewDCAService 创建定投策略服务
func NewDCAService(
	db *gorm.DB,
	locks *strategies.StrategyLocks,
	marketService domain.MarketService,
	scheduler domain.Scheduler,
	bus *event.Bus,
	maxActive int,
) *DCAServiceImpl {
	return &DCAServiceImpl{
		db:            db,
		locks:         locks,
		marketService: marketService,
		scheduler:     scheduler,
		bus:           bus,
		maxActive:     maxActive,
	}
}

// CreateStrategy 校验定投配置并落库，初始状态 CREATED
func (s *DCAServiceImpl) CreateStrategy(ctx context.Context, symbol string, cfg model.DCAConfig) (*model.DCAStrategy, error) {
	if symbol == "" {
		return nil, domain.NewBadRequestError("symbol is required")
	}
	if cfg.InvestmentAmount <= 0 {
		return nil, domain.NewBadRequestError(fmt.Sprintf("investmentAmount must be positive, got %.2f", cfg.InvestmentAmount))
	}
	if cfg.Frequency < 1 {
		return nil, domain.NewBadRequestError(fmt.Sprintf("frequency must be at least 1, got %d", cfg.Frequency))
	}
	switch cfg.FrequencyUnit {
	case model.FrequencyMinutes, model.FrequencyHours, model.FrequencyDays:
	default:
		return nil, domain.NewBadRequestError(fmt.Sprintf("invalid frequencyUnit %q", cfg.FrequencyUnit))
	}
	switch cfg.EndCondition {
	case model.EndConditionOrderCount:
		if cfg.MaxOrders < 1 {
			return nil, domain.NewBadRequestError(fmt.Sprintf("maxOrders must be at least 1 for orderCount end condition, got %d", cfg.MaxOrders))
		}
	case model.EndConditionStopLoss, model.EndConditionTakeProfit, model.EndConditionManual, "":
	default:
		return nil, domain.NewBadRequestError(fmt.Sprintf("invalid endCondition %q", cfg.EndCondition))
	}
	if cfg.OrderType == "" {
		cfg.OrderType = model.OrderTypeBuy
	}

	st := model.DCAStrategy{
		StrategyID: newStrategyID("dca"),
		Symbol:     symbol,
		Status:     model.StrategyStatusCreated,
		Config:     cfg,
	}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, domain.NewInternalError("failed to create dca strategy", err)
	}

	log.Printf("DCAService: Strategy %s created for %s (every %d %s)",
		st.StrategyID, symbol, cfg.Frequency, cfg.FrequencyUnit)
	return &st, nil
}

// StartLive 启动定投。幂等：ACTIVE 策略只重新排期，不新建订单。
func (s *DCAServiceImpl) StartLive(ctx context.Context, strategyID string) (*model.DCAStrategy, error) {
	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	if st.Status == model.StrategyStatusCompleted {
		return nil, domain.NewConflictError("strategy already completed")
	}

	if st.Status != model.StrategyStatusActive {
		if s.maxActive > 0 {
			if err := s.enforceLimit(ctx, strategyID); err != nil {
				return nil, err
			}
		}

		s.locks.Lock(strategyID)
		now := time.Now()
		st.Status = model.StrategyStatusActive
		if st.Monitoring.StartTime.IsZero() {
			st.Monitoring.StartTime = now
		}
		st.Monitoring.LastUpdate = now
		st.UpdatedAt = now
		err = s.db.WithContext(ctx).Model(st).
			Select("status", "monitoring", "updated_at").
			Updates(st).Error
		s.locks.Unlock(strategyID)
		if err != nil {
			return nil, domain.NewInternalError("failed to activate strategy", err)
		}

		s.bus.Publish(event.Event{
			Type:       constants.EventStrategyStarted,
			StrategyID: st.StrategyID,
			Symbol:     st.Symbol,
			Data: event.StrategyStatusPayload{
				StrategyID: st.StrategyID,
				Status:     string(st.Status),
			},
		})
	}

	if err := s.marketService.Subscribe(ctx, st.Symbol); err != nil {
		log.Printf("DCAService: Failed to subscribe %s: %v", st.Symbol, err)
	}

	// 排期：有 nextOrderTime 按其排，否则从配置起始时间或立即执行
	fireAt := time.Now()
	if st.Monitoring.NextOrderTime != nil {
		fireAt = *st.Monitoring.NextOrderTime
	} else if st.Config.StartTime.After(fireAt) {
		fireAt = st.Config.StartTime
	}
	s.scheduler.Upsert(st.StrategyID, fireAt)

	log.Printf("DCAService: Strategy %s started live on %s, first fire at %s",
		strategyID, st.Symbol, fireAt.Format(time.RFC3339))
	return st, nil
}

// StopLive 停止定投并移出排期，返回被撤销的挂单数量
func (s *DCAServiceImpl) StopLive(ctx context.Context, strategyID string) (int64, error) {
	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return 0, err
	}

	s.scheduler.Remove(strategyID)

	s.locks.Lock(strategyID)
	defer s.locks.Unlock(strategyID)

	if st.Status == model.StrategyStatusActive {
		if err := s.db.WithContext(ctx).Model(st).
			Update("status", model.StrategyStatusStopped).Error; err != nil {
			return 0, domain.NewInternalError("failed to stop strategy", err)
		}
		st.Status = model.StrategyStatusStopped
	}

	// 定投订单即时成交，通常没有挂单；防御性撤销
	res := s.db.WithContext(ctx).Model(&model.DCAOrder{}).
		Where("strategy_id = ? AND status = ?", strategyID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, domain.NewInternalError("failed to cancel pending orders", res.Error)
	}

	if err := s.marketService.Unsubscribe(ctx, st.Symbol); err != nil {
		log.Printf("DCAService: Failed to unsubscribe %s: %v", st.Symbol, err)
	}

	s.bus.Publish(event.Event{
		Type:       constants.EventStrategyStopped,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.StrategyStatusPayload{
			StrategyID: st.StrategyID,
			Status:     string(st.Status),
			Reason:     "manual",
		},
	})

	log.Printf("DCAService: Strategy %s stopped, %d orders cancelled", strategyID, res.RowsAffected)
	return res.RowsAffected, nil
}

// enforceLimit 停掉最旧的 ACTIVE 策略, 为新策略腾位
func (s *DCAServiceImpl) enforceLimit(ctx context.Context, keepID string) error {
	var active []model.DCAStrategy
	err := s.db.WithContext(ctx).
		Where("status = ? AND strategy_id <> ?", model.StrategyStatusActive, keepID).
		Order("created_at DESC").
		Find(&active).Error
	if err != nil {
		return domain.NewInternalError("failed to load active strategies", err)
	}

	for i := range active {
		if i < s.maxActive-1 {
			continue
		}
		if _, err := s.StopLive(ctx, active[i].StrategyID); err != nil {
			return err
		}
	}
	return nil
}

// GetStrategy 获取策略详情
func (s *DCAServiceImpl) GetStrategy(ctx context.Context, strategyID string) (*model.DCAStrategy, error) {
	var st model.DCAStrategy
	if err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&st).Error; err != nil {
		return nil, domain.NewNotFoundError("dca strategy not found")
	}
	return &st, nil
}

// GetOrders 获取策略全部订单（按执行序号升序）
func (s *DCAServiceImpl) GetOrders(ctx context.Context, strategyID string) ([]model.DCAOrder, error) {
	if _, err := s.GetStrategy(ctx, strategyID); err != nil {
		return nil, err
	}
	var orders []model.DCAOrder
	if err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("order_number ASC").
		Find(&orders).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch orders", err)
	}
	return orders, nil
}

// ListActive 获取活跃策略列表
func (s *DCAServiceImpl) ListActive(ctx context.Context) ([]model.DCAStrategy, error) {
	var active []model.DCAStrategy
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.StrategyStatusActive).
		Order("created_at DESC").
		Find(&active).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch active strategies", err)
	}
	return active, nil
}

// 确保实现了接口
var _ domain.DCAService = (*DCAServiceImpl)(nil)
