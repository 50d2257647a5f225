package service

import (
	"context"
	"log"

	"gorm.io/gorm"

	"gridtrade.com/internal/backtest"
	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
)

// BacktestServiceImpl 执行离线回放并持久化结果
type BacktestServiceImpl struct {
	db *gorm.DB
}

// NewBacktestService 创建回测服务
func NewBacktestService(db *gorm.DB) *BacktestServiceImpl {
	return &BacktestServiceImpl{db: db}
}

// RunGrid 对一段历史 K 线回放网格配置并保存结果
func (s *BacktestServiceImpl) RunGrid(ctx context.Context, strategyID, symbol string, cfg model.GridConfig, candles []model.Candle, period string) (*model.GridBacktestResult, error) {
	if len(candles) == 0 {
		return nil, domain.NewBadRequestError("historical data is required")
	}
	if cfg.UpperPrice <= cfg.LowerPrice || cfg.Levels < 1 {
		return nil, domain.NewBadRequestError("invalid grid configuration")
	}
	if cfg.Mode == "" {
		cfg.Mode = model.GridModeNeutral
	}

	stats, trades := backtest.RunGrid(cfg, candles)

	result := model.GridBacktestResult{
		StrategyID: strategyID,
		Symbol:     symbol,
		Config:     cfg,
		Results:    stats,
		Trades:     trades,
		Period:     period,
	}
	if err := s.db.WithContext(ctx).Create(&result).Error; err != nil {
		return nil, domain.NewInternalError("failed to save backtest result", err)
	}

	log.Printf("BacktestService: Grid backtest completed for %s: %d trades, %.2f P&L, %.2f%% ROI",
		symbol, stats.TotalTrades, stats.TotalPnL, stats.ROI)
	return &result, nil
}

// RunDCA 对一段历史 K 线回放定投配置并保存结果
func (s *BacktestServiceImpl) RunDCA(ctx context.Context, strategyID, symbol string, cfg model.DCAConfig, candles []model.Candle, period string) (*model.DCABacktestResult, error) {
	if len(candles) == 0 {
		return nil, domain.NewBadRequestError("historical data is required")
	}
	if cfg.InvestmentAmount <= 0 {
		return nil, domain.NewBadRequestError("investmentAmount must be positive")
	}

	stats, trades := backtest.RunDCA(cfg, candles)

	result := model.DCABacktestResult{
		StrategyID: strategyID,
		Symbol:     symbol,
		Config:     cfg,
		Results:    stats,
		Trades:     trades,
		Period:     period,
	}
	if err := s.db.WithContext(ctx).Create(&result).Error; err != nil {
		return nil, domain.NewInternalError("failed to save backtest result", err)
	}

	log.Printf("BacktestService: DCA backtest completed for %s: %d orders, %.2f P&L, %.2f%% ROI",
		symbol, stats.TotalOrders, stats.TotalPnL, stats.ROI)
	return &result, nil
}
