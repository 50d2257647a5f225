package service

import (
	"context"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
)

// InstrumentServiceImpl 合约目录服务
type InstrumentServiceImpl struct {
	db *gorm.DB
}

// NewInstrumentService 创建合约服务
func NewInstrumentService(db *gorm.DB) *InstrumentServiceImpl {
	return &InstrumentServiceImpl{db: db}
}

// List 分页获取可交易合约，返回当前页与总数
func (s *InstrumentServiceImpl) List(ctx context.Context, page, pageSize int) ([]model.Instrument, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Instrument{}).
		Where("is_active = ?", true).
		Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count instruments", err)
	}

	var instruments []model.Instrument
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("symbol ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&instruments).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch instruments", err)
	}
	return instruments, total, nil
}

// Get 按 symbol 查询单个合约
func (s *InstrumentServiceImpl) Get(ctx context.Context, symbol string) (*model.Instrument, error) {
	var inst model.Instrument
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&inst).Error; err != nil {
		return nil, domain.NewNotFoundError("instrument not found")
	}
	return &inst, nil
}

// Upsert 批量同步合约目录（来自网关的合约快照）
func (s *InstrumentServiceImpl) Upsert(ctx context.Context, instruments []model.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&instruments).Error; err != nil {
		return domain.NewInternalError("failed to upsert instruments", err)
	}
	log.Printf("InstrumentService: Synchronized %d instruments", len(instruments))
	return nil
}
