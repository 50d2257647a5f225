package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gridtrade.com/internal/constants"
	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/model"
	"gridtrade.com/internal/strategies"
)

// GridServiceImpl 实现 domain.GridService 接口
type GridServiceImpl struct {
	db            *gorm.DB
	engine        *strategies.GridEngine
	locks         *strategies.StrategyLocks
	marketService domain.MarketService
	prices        domain.PriceSource
	bus           *event.Bus

	// 允许同时 ACTIVE 的网格策略数量, <=0 表示不限制
	maxActive int
}

// NewGridService 创建网格策略服务
func NewGridService(
	db *gorm.DB,
	engine *strategies.GridEngine,
	locks *strategies.StrategyLocks,
	marketService domain.MarketService,
	prices domain.PriceSource,
	bus *event.Bus,
	maxActive int,
) *GridServiceImpl {
	return &GridServiceImpl{
		db:            db,
		engine:        engine,
		locks:         locks,
		marketService: marketService,
		prices:        prices,
		bus:           bus,
		maxActive:     maxActive,
	}
}

func newStrategyID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// CreateStrategy 校验配置、预计算网格价位并落库，初始状态 CREATED
func (s *GridServiceImpl) CreateStrategy(ctx context.Context, symbol string, cfg model.GridConfig) (*model.GridStrategy, error) {
	if symbol == "" {
		return nil, domain.NewBadRequestError("symbol is required")
	}
	if cfg.GridType == "" {
		cfg.GridType = model.GridTypeArithmetic
	}
	if cfg.Mode == "" {
		cfg.Mode = model.GridModeNeutral
	}
	if cfg.GridType != model.GridTypeArithmetic && cfg.GridType != model.GridTypeGeometric {
		return nil, domain.NewBadRequestError(fmt.Sprintf("invalid gridType %q", cfg.GridType))
	}
	if cfg.LowerPrice <= 0 {
		return nil, domain.NewBadRequestError(fmt.Sprintf("lowerPrice must be positive, got %.2f", cfg.LowerPrice))
	}
	if cfg.UpperPrice <= cfg.LowerPrice {
		return nil, domain.NewBadRequestError(fmt.Sprintf(
			"upperPrice must be greater than lowerPrice, got upper=%.2f lower=%.2f", cfg.UpperPrice, cfg.LowerPrice))
	}
	if cfg.Levels < 1 || cfg.Levels > 100 {
		return nil, domain.NewBadRequestError(fmt.Sprintf("levels must be between 1 and 100, got %d", cfg.Levels))
	}
	if cfg.Investment <= 0 && cfg.QtyPerOrder <= 0 {
		return nil, domain.NewBadRequestError("either investment or qtyPerOrder must be positive")
	}

	levels := strategies.CalculateGridLevels(cfg)
	if len(levels) == 0 {
		return nil, domain.NewBadRequestError("grid configuration produces no levels")
	}

	st := model.GridStrategy{
		StrategyID: newStrategyID("grid"),
		Symbol:     symbol,
		Status:     model.StrategyStatusCreated,
		Config:     cfg,
		GridLevels: levels,
	}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, domain.NewInternalError("failed to create grid strategy", err)
	}

	log.Printf("GridService: Strategy %s created for %s (%d levels)", st.StrategyID, symbol, len(levels))
	return &st, nil
}

// StartLive 启动实盘。幂等：ACTIVE 策略直接返回；已有挂单不重复播种。
// 启动前先按单例约束停掉多余的 ACTIVE 策略。
func (s *GridServiceImpl) StartLive(ctx context.Context, strategyID string) (*model.GridStrategy, error) {
	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	if st.Status == model.StrategyStatusActive {
		log.Printf("GridService: Strategy %s already active, resuming", strategyID)
		return st, nil
	}
	if st.Status == model.StrategyStatusCompleted {
		return nil, domain.NewConflictError("strategy already completed")
	}

	// 无行情时退回区间中点作基准价, 首个 tick 到来后会立即刷新
	refPrice := (st.Config.LowerPrice + st.Config.UpperPrice) / 2
	if tick, ok := s.prices.Last(st.Symbol); ok && tick.LTP > 0 {
		refPrice = tick.LTP
	}

	// 单例约束: 为新策略腾位
	if s.maxActive > 0 {
		if err := s.stopOthers(ctx, strategyID, s.maxActive-1); err != nil {
			return nil, err
		}
	}

	s.locks.Lock(strategyID)
	defer s.locks.Unlock(strategyID)

	now := time.Now()
	st.Status = model.StrategyStatusActive
	st.CurrentPrice = refPrice
	if st.Monitoring.StartTime.IsZero() {
		st.Monitoring.StartTime = now
	}
	st.Monitoring.LastUpdate = now
	st.UpdatedAt = now
	if err := s.db.WithContext(ctx).Model(st).
		Select("status", "current_price", "monitoring", "updated_at").
		Updates(st).Error; err != nil {
		return nil, domain.NewInternalError("failed to activate strategy", err)
	}

	// 重启场景下已有订单账本, 不重复建单
	var orderCount int64
	if err := s.db.WithContext(ctx).Model(&model.GridOrder{}).
		Where("strategy_id = ?", strategyID).Count(&orderCount).Error; err != nil {
		return nil, domain.NewInternalError("failed to count orders", err)
	}
	if orderCount == 0 {
		if _, err := s.engine.SeedOrders(ctx, st, refPrice); err != nil {
			return nil, domain.NewInternalError("failed to seed grid orders", err)
		}
	}

	if err := s.marketService.Subscribe(ctx, st.Symbol); err != nil {
		log.Printf("GridService: Failed to subscribe %s: %v", st.Symbol, err)
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

	log.Printf("GridService: Strategy %s started live on %s at %.2f", strategyID, st.Symbol, refPrice)
	return st, nil
}

// StopLive 停止实盘并撤销全部挂单，返回撤单数量
func (s *GridServiceImpl) StopLive(ctx context.Context, strategyID string) (int64, error) {
	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return 0, err
	}

	s.locks.Lock(strategyID)
	defer s.locks.Unlock(strategyID)

	cancelled, err := s.stopLocked(ctx, st, "manual")
	if err != nil {
		return 0, err
	}

	if err := s.marketService.Unsubscribe(ctx, st.Symbol); err != nil {
		log.Printf("GridService: Failed to unsubscribe %s: %v", st.Symbol, err)
	}
	return cancelled, nil
}

// stopLocked 在持有策略锁的前提下执行停止与撤单
func (s *GridServiceImpl) stopLocked(ctx context.Context, st *model.GridStrategy, reason string) (int64, error) {
	if st.Status == model.StrategyStatusActive {
		if err := s.db.WithContext(ctx).Model(st).
			Update("status", model.StrategyStatusStopped).Error; err != nil {
			return 0, domain.NewInternalError("failed to stop strategy", err)
		}
		st.Status = model.StrategyStatusStopped
	}

	cancelled, err := s.engine.CancelPending(ctx, st.StrategyID)
	if err != nil {
		return 0, domain.NewInternalError("failed to cancel pending orders", err)
	}

	s.bus.Publish(event.Event{
		Type:       constants.EventStrategyStopped,
		StrategyID: st.StrategyID,
		Symbol:     st.Symbol,
		Data: event.StrategyStatusPayload{
			StrategyID: st.StrategyID,
			Status:     string(st.Status),
			Reason:     reason,
		},
	})

	log.Printf("GridService: Strategy %s stopped (%s), %d orders cancelled", st.StrategyID, reason, cancelled)
	return cancelled, nil
}

// stopOthers 停掉除 keepID 之外的 ACTIVE 策略中最旧的那些, 只保留 keepCount 个
func (s *GridServiceImpl) stopOthers(ctx context.Context, keepID string, keepCount int) error {
	var active []model.GridStrategy
	err := s.db.WithContext(ctx).
		Where("status = ? AND strategy_id <> ?", model.StrategyStatusActive, keepID).
		Order("created_at DESC").
		Find(&active).Error
	if err != nil {
		return domain.NewInternalError("failed to load active strategies", err)
	}

	for i := range active {
		if i < keepCount {
			continue
		}
		st := &active[i]
		s.locks.Lock(st.StrategyID)
		if _, err := s.stopLocked(ctx, st, "singleton"); err != nil {
			s.locks.Unlock(st.StrategyID)
			return err
		}
		s.locks.Unlock(st.StrategyID)
	}
	return nil
}

// GetStrategy 获取策略详情
func (s *GridServiceImpl) GetStrategy(ctx context.Context, strategyID string) (*model.GridStrategy, error) {
	var st model.GridStrategy
	if err := s.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&st).Error; err != nil {
		return nil, domain.NewNotFoundError("grid strategy not found")
	}
	return &st, nil
}

// GetOrders 获取策略全部订单（按创建时间升序）
func (s *GridServiceImpl) GetOrders(ctx context.Context, strategyID string) ([]model.GridOrder, error) {
	if _, err := s.GetStrategy(ctx, strategyID); err != nil {
		return nil, err
	}
	var orders []model.GridOrder
	if err := s.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch orders", err)
	}
	return orders, nil
}

// ListActive 获取活跃策略列表
func (s *GridServiceImpl) ListActive(ctx context.Context) ([]model.GridStrategy, error) {
	var active []model.GridStrategy
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.StrategyStatusActive).
		Order("created_at DESC").
		Find(&active).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch active strategies", err)
	}
	return active, nil
}

// EnforceSingleton 周期性兜底：仅保留最近创建的 ACTIVE 策略
func (s *GridServiceImpl) EnforceSingleton(ctx context.Context) error {
	if s.maxActive <= 0 {
		return nil
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active) <= s.maxActive {
		return nil
	}

	log.Printf("GridService: Singleton sweep found %d active strategies, keeping %d", len(active), s.maxActive)
	for i := s.maxActive; i < len(active); i++ {
		st := &active[i]
		s.locks.Lock(st.StrategyID)
		if _, err := s.stopLocked(ctx, st, "singleton_sweep"); err != nil {
			s.locks.Unlock(st.StrategyID)
			return err
		}
		s.locks.Unlock(st.StrategyID)
	}
	return nil
}

// 确保实现了接口
var _ domain.GridService = (*GridServiceImpl)(nil)
