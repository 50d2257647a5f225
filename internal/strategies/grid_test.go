package strategies

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gridtrade.com/internal/event"
	"gridtrade.com/internal/infra"
	"gridtrade.com/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, infra.AutoMigrate(db))
	return db
}

func newTestGridEngine(t *testing.T) (*GridEngine, *gorm.DB, *event.Bus) {
	t.Helper()
	db := newTestDB(t)
	bus := event.NewBus(64)
	t.Cleanup(bus.Shutdown)
	return NewGridEngine(db, bus, NewStrategyLocks()), db, bus
}

func makeGridStrategy(t *testing.T, db *gorm.DB, cfg model.GridConfig) *model.GridStrategy {
	t.Helper()
	st := &model.GridStrategy{
		StrategyID: "grid_test_" + strings.ReplaceAll(t.Name(), "/", "_"),
		Symbol:     "NIFTY24DECFUT",
		Status:     model.StrategyStatusActive,
		Config:     cfg,
		GridLevels: CalculateGridLevels(cfg),
	}
	require.NoError(t, db.Create(st).Error)
	return st
}

func tickAt(price float64) model.Tick {
	return model.Tick{Symbol: "NIFTY24DECFUT", LTP: price, Timestamp: time.Now()}
}

func defaultGridConfig() model.GridConfig {
	return model.GridConfig{
		GridType:    model.GridTypeArithmetic,
		LowerPrice:  100,
		UpperPrice:  110,
		Levels:      3,
		Investment:  10000,
		QtyPerOrder: 10,
		Mode:        model.GridModeNeutral,
	}
}

func TestSeedOrdersNeutral(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())

	// 基准价恰好落在中间档位: 该档位跳过
	orders, err := eng.SeedOrders(context.Background(), st, 105)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, model.OrderTypeBuy, orders[0].Type)
	assert.Equal(t, 102.5, orders[0].Price)
	assert.Equal(t, 1, orders[0].GridLevel)

	assert.Equal(t, model.OrderTypeSell, orders[1].Type)
	assert.Equal(t, 107.5, orders[1].Price)
	assert.Equal(t, 3, orders[1].GridLevel)

	for _, o := range orders {
		assert.Equal(t, model.OrderStatusPending, o.Status)
		assert.Equal(t, 10.0, o.Quantity)
	}
}

func TestSeedOrdersLongAndShortModes(t *testing.T) {
	t.Run("long seeds only buys", func(t *testing.T) {
		eng, db, _ := newTestGridEngine(t)
		cfg := defaultGridConfig()
		cfg.Mode = model.GridModeLong
		st := makeGridStrategy(t, db, cfg)

		orders, err := eng.SeedOrders(context.Background(), st, 106)
		require.NoError(t, err)
		require.Len(t, orders, 2) // 102.5 和 105
		for _, o := range orders {
			assert.Equal(t, model.OrderTypeBuy, o.Type)
		}
	})

	t.Run("short seeds only sells", func(t *testing.T) {
		eng, db, _ := newTestGridEngine(t)
		cfg := defaultGridConfig()
		cfg.Mode = model.GridModeShort
		st := makeGridStrategy(t, db, cfg)

		orders, err := eng.SeedOrders(context.Background(), st, 104)
		require.NoError(t, err)
		require.Len(t, orders, 2) // 105 和 107.5
		for _, o := range orders {
			assert.Equal(t, model.OrderTypeSell, o.Type)
		}
	})
}

func TestCheckOrderFillsToleranceBoundary(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())
	_, err := eng.SeedOrders(context.Background(), st, 105)
	require.NoError(t, err)

	ctx := context.Background()

	// BUY@102.5, 容差 0.1025: 102.61 在容差带之外
	eng.CheckOrderFills(ctx, st.Symbol, tickAt(102.61))
	var buy model.GridOrder
	require.NoError(t, db.Where("strategy_id = ? AND type = ?", st.StrategyID, model.OrderTypeBuy).First(&buy).Error)
	assert.Equal(t, model.OrderStatusPending, buy.Status)
	assert.Equal(t, 102.61, buy.LastCheckedPrice)

	// 未成交的 tick 也要把行情写穿到策略行
	var reloaded model.GridStrategy
	require.NoError(t, db.Where("strategy_id = ?", st.StrategyID).First(&reloaded).Error)
	assert.Equal(t, 102.61, reloaded.CurrentPrice)
	assert.False(t, reloaded.Monitoring.LastPriceUpdate.IsZero())

	// 102.6 <= 102.5 + 0.1025: 成交
	eng.CheckOrderFills(ctx, st.Symbol, tickAt(102.6))
	require.NoError(t, db.Where("order_id = ?", buy.OrderID).First(&buy).Error)
	assert.Equal(t, model.OrderStatusFilled, buy.Status)
	assert.Equal(t, 102.6, buy.FillPrice)
	assert.Equal(t, buy.Quantity, buy.FillQuantity)
	require.NotNil(t, buy.FillTime)
	assert.Zero(t, buy.PnL, "BUY fills carry no pnl")

	// 成交后按成交价上移一格生成反向 SELL
	var next model.GridOrder
	require.NoError(t, db.Where("strategy_id = ? AND type = ? AND status = ? AND price = ?",
		st.StrategyID, model.OrderTypeSell, model.OrderStatusPending, 105.1).First(&next).Error)
	assert.Equal(t, buy.GridLevel, next.GridLevel)
	assert.Equal(t, buy.Quantity, next.Quantity)
}

func TestNextOrderDerivedFromFillPrice(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())

	// 穿越行情: 挂 105 的买单以 100 成交, 反手卖单挂在 100+2.5 而非 105+2.5
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "buy_crossed", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 105, Quantity: 10,
		Status: model.OrderStatusPending, GridLevel: 2,
	}).Error)

	eng.CheckOrderFills(context.Background(), st.Symbol, tickAt(100))

	var buy model.GridOrder
	require.NoError(t, db.Where("order_id = ?", "buy_crossed").First(&buy).Error)
	require.Equal(t, model.OrderStatusFilled, buy.Status)
	assert.Equal(t, 100.0, buy.FillPrice)

	var next model.GridOrder
	require.NoError(t, db.Where("strategy_id = ? AND type = ? AND status = ?",
		st.StrategyID, model.OrderTypeSell, model.OrderStatusPending).First(&next).Error)
	assert.Equal(t, 102.5, next.Price)
}

func TestFillIsIdempotent(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())
	_, err := eng.SeedOrders(context.Background(), st, 105)
	require.NoError(t, err)

	ctx := context.Background()
	eng.CheckOrderFills(ctx, st.Symbol, tickAt(102.5))
	eng.CheckOrderFills(ctx, st.Symbol, tickAt(102.5))

	var filled int64
	require.NoError(t, db.Model(&model.GridOrder{}).
		Where("strategy_id = ? AND status = ?", st.StrategyID, model.OrderStatusFilled).
		Count(&filled).Error)
	assert.Equal(t, int64(1), filled, "same tick twice must not double fill")

	// 终态订单不回退: 直接再调 fillOrder 也只是 no-op
	var buy model.GridOrder
	require.NoError(t, db.Where("strategy_id = ? AND status = ?", st.StrategyID, model.OrderStatusFilled).First(&buy).Error)
	firstFillPrice := buy.FillPrice
	require.NoError(t, eng.fillOrder(ctx, st, &buy, 999, time.Now()))
	require.NoError(t, db.Where("order_id = ?", buy.OrderID).First(&buy).Error)
	assert.Equal(t, firstFillPrice, buy.FillPrice)
}

func TestSellFillComputesPnLAgainstLastBuy(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())

	earlier := time.Now().Add(-time.Hour)
	evenEarlier := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "buy_old", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 95, Quantity: 10,
		Status: model.OrderStatusFilled, FillPrice: 95, FillTime: &evenEarlier,
	}).Error)
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "buy_recent", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 100, Quantity: 10,
		Status: model.OrderStatusFilled, FillPrice: 100, FillTime: &earlier,
	}).Error)
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "sell_pending", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeSell, Price: 105, Quantity: 10,
		Status: model.OrderStatusPending, GridLevel: 2,
	}).Error)

	eng.CheckOrderFills(context.Background(), st.Symbol, tickAt(105))

	var sell model.GridOrder
	require.NoError(t, db.Where("order_id = ?", "sell_pending").First(&sell).Error)
	require.Equal(t, model.OrderStatusFilled, sell.Status)
	// 对最近一笔买入(100)计算, 不是更早的 95
	assert.Equal(t, 50.0, sell.PnL)
}

func TestNextOrderSkippedOutsideBand(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())

	now := time.Now()
	filled := &model.GridOrder{
		OrderID: "buy_at_upper", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 110, Quantity: 10,
		Status: model.OrderStatusFilled, FillPrice: 110, GridLevel: 3,
	}
	require.NoError(t, db.Create(filled).Error)

	// 110 + 2.5 超出区间上界: 不生成
	require.NoError(t, eng.createNextGridOrder(context.Background(), st, filled, now))

	var pending int64
	require.NoError(t, db.Model(&model.GridOrder{}).
		Where("strategy_id = ? AND status = ?", st.StrategyID, model.OrderStatusPending).
		Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestCancelPending(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())
	_, err := eng.SeedOrders(context.Background(), st, 105)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "already_filled", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 102.5, Quantity: 10,
		Status: model.OrderStatusFilled, FillPrice: 102.5, FillTime: &now,
	}).Error)

	cancelled, err := eng.CancelPending(context.Background(), st.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)

	// 已成交订单保持终态
	var order model.GridOrder
	require.NoError(t, db.Where("order_id = ?", "already_filled").First(&order).Error)
	assert.Equal(t, model.OrderStatusFilled, order.Status)
}

func TestRecomputeMonitoringFromLedger(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	st := makeGridStrategy(t, db, defaultGridConfig())

	now := time.Now()
	orders := []model.GridOrder{
		{OrderID: "f1", StrategyID: st.StrategyID, Symbol: st.Symbol, Type: model.OrderTypeSell,
			Status: model.OrderStatusFilled, PnL: 30, FillTime: &now},
		{OrderID: "f2", StrategyID: st.StrategyID, Symbol: st.Symbol, Type: model.OrderTypeSell,
			Status: model.OrderStatusFilled, PnL: -10, FillTime: &now},
		{OrderID: "p1", StrategyID: st.StrategyID, Symbol: st.Symbol, Type: model.OrderTypeBuy,
			Status: model.OrderStatusPending},
		{OrderID: "p2", StrategyID: st.StrategyID, Symbol: st.Symbol, Type: model.OrderTypeBuy,
			Status: model.OrderStatusPending},
		{OrderID: "c1", StrategyID: st.StrategyID, Symbol: st.Symbol, Type: model.OrderTypeBuy,
			Status: model.OrderStatusCancelled},
	}
	require.NoError(t, db.Create(&orders).Error)

	require.NoError(t, eng.RecomputeMonitoring(context.Background(), st))

	var reloaded model.GridStrategy
	require.NoError(t, db.Where("strategy_id = ?", st.StrategyID).First(&reloaded).Error)
	m := reloaded.Monitoring
	assert.Equal(t, 2, m.FilledOrders)
	assert.Equal(t, 2, m.PendingOrders)
	assert.Equal(t, 20.0, m.TotalPnL)
	assert.Equal(t, 10000.0, m.TotalInvestment)
	assert.Equal(t, 10020.0, m.CurrentValue)
	assert.Equal(t, 0.2, m.ROI)
	assert.False(t, m.LastUpdate.IsZero())
}

func TestRecomputeMonitoringZeroInvestment(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	cfg := defaultGridConfig()
	cfg.Investment = 0
	st := makeGridStrategy(t, db, cfg)

	require.NoError(t, eng.RecomputeMonitoring(context.Background(), st))

	var reloaded model.GridStrategy
	require.NoError(t, db.Where("strategy_id = ?", st.StrategyID).First(&reloaded).Error)
	assert.Zero(t, reloaded.Monitoring.ROI)
}

func TestClosestPendingOrderFillsFirst(t *testing.T) {
	eng, db, _ := newTestGridEngine(t)
	cfg := defaultGridConfig()
	st := makeGridStrategy(t, db, cfg)

	// 两个买单都在容差带内时, 离报价近的先成交
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "far", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 105, Quantity: 10,
		Status: model.OrderStatusPending, GridLevel: 2, CreatedAt: time.Now().Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&model.GridOrder{
		OrderID: "near", StrategyID: st.StrategyID, Symbol: st.Symbol,
		Type: model.OrderTypeBuy, Price: 102.5, Quantity: 10,
		Status: model.OrderStatusPending, GridLevel: 1, CreatedAt: time.Now(),
	}).Error)

	eng.CheckOrderFills(context.Background(), st.Symbol, tickAt(102.55))

	var near, far model.GridOrder
	require.NoError(t, db.Where("order_id = ?", "near").First(&near).Error)
	require.NoError(t, db.Where("order_id = ?", "far").First(&far).Error)
	assert.Equal(t, model.OrderStatusFilled, near.Status)
	assert.Equal(t, model.OrderStatusFilled, far.Status) // 105 买单在 102.55 也满足 price <= order+tol
}
