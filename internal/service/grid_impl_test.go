package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/event"
	"gridtrade.com/internal/infra"
	"gridtrade.com/internal/model"
	"gridtrade.com/internal/strategies"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, infra.AutoMigrate(db))
	return db
}

// stubMarket records reference-counted subscriptions without a gateway.
type stubMarket struct {
	mu   sync.Mutex
	subs map[string]int
}

func newStubMarket() *stubMarket {
	return &stubMarket{subs: make(map[string]int)}
}

func (m *stubMarket) Subscribe(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[symbol]++
	return nil
}

func (m *stubMarket) Unsubscribe(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[symbol]--
	return nil
}

func (m *stubMarket) AddExistingSubscription(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[symbol]++
}

func (m *stubMarket) ResubscribeAll(_ context.Context) error { return nil }

func (m *stubMarket) GetActiveSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for sym, n := range m.subs {
		if n > 0 {
			out = append(out, sym)
		}
	}
	return out
}

func (m *stubMarket) count(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[symbol]
}

var _ domain.MarketService = (*stubMarket)(nil)

// stubPrices satisfies domain.PriceSource with a fixed tick map.
type stubPrices map[string]model.Tick

func (p stubPrices) Last(symbol string) (model.Tick, bool) {
	tick, ok := p[symbol]
	return tick, ok
}

func newGridServiceForTest(t *testing.T, prices stubPrices, maxActive int) (*GridServiceImpl, *stubMarket, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	bus := event.NewBus(64)
	t.Cleanup(bus.Shutdown)
	locks := strategies.NewStrategyLocks()
	eng := strategies.NewGridEngine(db, bus, locks)
	market := newStubMarket()
	svc := NewGridService(db, eng, locks, market, prices, bus, maxActive)
	return svc, market, db
}

func validGridConfig() model.GridConfig {
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

func livePrices(price float64) stubPrices {
	return stubPrices{
		"NIFTY24DECFUT": {Symbol: "NIFTY24DECFUT", LTP: price, Timestamp: time.Now()},
	}
}

func TestGridCreateStrategyValidation(t *testing.T) {
	svc, _, _ := newGridServiceForTest(t, stubPrices{}, 1)
	ctx := context.Background()

	tests := []struct {
		name   string
		symbol string
		mutate func(*model.GridConfig)
	}{
		{"empty symbol", "", func(*model.GridConfig) {}},
		{"non-positive lower", "NIFTY24DECFUT", func(c *model.GridConfig) { c.LowerPrice = 0 }},
		{"inverted band", "NIFTY24DECFUT", func(c *model.GridConfig) { c.UpperPrice = 90 }},
		{"zero levels", "NIFTY24DECFUT", func(c *model.GridConfig) { c.Levels = 0 }},
		{"too many levels", "NIFTY24DECFUT", func(c *model.GridConfig) { c.Levels = 101 }},
		{"no sizing", "NIFTY24DECFUT", func(c *model.GridConfig) { c.Investment = 0; c.QtyPerOrder = 0 }},
		{"bad grid type", "NIFTY24DECFUT", func(c *model.GridConfig) { c.GridType = "Fibonacci" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validGridConfig()
			tt.mutate(&cfg)
			_, err := svc.CreateStrategy(ctx, tt.symbol, cfg)
			require.Error(t, err)
			var appErr *domain.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 400, appErr.Code)
		})
	}
}

func TestGridCreateStrategyDefaultsAndLevels(t *testing.T) {
	svc, _, _ := newGridServiceForTest(t, stubPrices{}, 1)

	cfg := validGridConfig()
	cfg.GridType = ""
	cfg.Mode = ""
	st, err := svc.CreateStrategy(context.Background(), "NIFTY24DECFUT", cfg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(st.StrategyID, "grid_"))
	assert.Equal(t, model.StrategyStatusCreated, st.Status)
	assert.Equal(t, model.GridTypeArithmetic, st.Config.GridType)
	assert.Equal(t, model.GridModeNeutral, st.Config.Mode)
	assert.Equal(t, []float64{102.5, 105, 107.5}, st.GridLevels)
}

func TestGridStartLiveSeedsFromMidpointWithoutPrice(t *testing.T) {
	// 行情缓存为空: 以区间中点 (100+110)/2 = 105 作基准价播种
	svc, market, db := newGridServiceForTest(t, stubPrices{}, 1)
	ctx := context.Background()

	st, err := svc.CreateStrategy(ctx, "NIFTY24DECFUT", validGridConfig())
	require.NoError(t, err)

	started, err := svc.StartLive(ctx, st.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyStatusActive, started.Status)
	assert.Equal(t, 105.0, started.CurrentPrice)
	assert.Equal(t, 1, market.count("NIFTY24DECFUT"))

	var orders []model.GridOrder
	require.NoError(t, db.Where("strategy_id = ?", st.StrategyID).Order("price ASC").Find(&orders).Error)
	require.Len(t, orders, 2) // 中间档 105 等于基准价, 跳过
	assert.Equal(t, model.OrderTypeBuy, orders[0].Type)
	assert.Equal(t, 102.5, orders[0].Price)
	assert.Equal(t, model.OrderTypeSell, orders[1].Type)
	assert.Equal(t, 107.5, orders[1].Price)
}

func TestGridStartLiveSeedsOnceAndSubscribes(t *testing.T) {
	svc, market, db := newGridServiceForTest(t, livePrices(105), 1)
	ctx := context.Background()

	st, err := svc.CreateStrategy(ctx, "NIFTY24DECFUT", validGridConfig())
	require.NoError(t, err)

	started, err := svc.StartLive(ctx, st.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyStatusActive, started.Status)
	assert.Equal(t, 105.0, started.CurrentPrice)
	assert.Equal(t, 1, market.count("NIFTY24DECFUT"))

	var orderCount int64
	require.NoError(t, db.Model(&model.GridOrder{}).
		Where("strategy_id = ?", st.StrategyID).Count(&orderCount).Error)
	assert.Equal(t, int64(2), orderCount) // 基准价=中间档, 只挂上下两单

	// 幂等重启: 不重复建单
	_, err = svc.StartLive(ctx, st.StrategyID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.GridOrder{}).
		Where("strategy_id = ?", st.StrategyID).Count(&orderCount).Error)
	assert.Equal(t, int64(2), orderCount)
}

func TestGridStartLiveEnforcesSingleton(t *testing.T) {
	svc, _, _ := newGridServiceForTest(t, livePrices(105), 1)
	ctx := context.Background()

	first, err := svc.CreateStrategy(ctx, "NIFTY24DECFUT", validGridConfig())
	require.NoError(t, err)
	second, err := svc.CreateStrategy(ctx, "NIFTY24DECFUT", validGridConfig())
	require.NoError(t, err)

	_, err = svc.StartLive(ctx, first.StrategyID)
	require.NoError(t, err)
	_, err = svc.StartLive(ctx, second.StrategyID)
	require.NoError(t, err)

	reloaded, err := svc.GetStrategy(ctx, first.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyStatusStopped, reloaded.Status)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.StrategyID, active[0].StrategyID)
}

func TestGridStopLiveCancelsPending(t *testing.T) {
	svc, market, _ := newGridServiceForTest(t, livePrices(105), 1)
	ctx := context.Background()

	st, err := svc.CreateStrategy(ctx, "NIFTY24DECFUT", validGridConfig())
	require.NoError(t, err)
	_, err = svc.StartLive(ctx, st.StrategyID)
	require.NoError(t, err)

	cancelled, err := svc.StopLive(ctx, st.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)
	assert.Equal(t, 0, market.count("NIFTY24DECFUT"))

	reloaded, err := svc.GetStrategy(ctx, st.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, model.StrategyStatusStopped, reloaded.Status)
}

func TestGridGetStrategyNotFound(t *testing.T) {
	svc, _, _ := newGridServiceForTest(t, stubPrices{}, 1)

	_, err := svc.GetStrategy(context.Background(), "grid_missing")
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Code)
}

func TestGridEnforceSingletonSweep(t *testing.T) {
	svc, _, db := newGridServiceForTest(t, livePrices(105), 1)
	ctx := context.Background()

	// 绕过 StartLive 直接造出两个 ACTIVE, 模拟并发启动留下的超额
	older := &model.GridStrategy{
		StrategyID: "grid_older", Symbol: "NIFTY24DECFUT",
		Status: model.StrategyStatusActive, Config: validGridConfig(),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &model.GridStrategy{
		StrategyID: "grid_newer", Symbol: "NIFTY24DECFUT",
		Status: model.StrategyStatusActive, Config: validGridConfig(),
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)

	require.NoError(t, svc.EnforceSingleton(ctx))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "grid_newer", active[0].StrategyID)
}
