package engine

import (
	"sync"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/model"
)

var _ domain.PriceSource = (*PriceCache)(nil)

// PriceCache 保存每个合约最新的行情快照。
// 读侧（策略启动、定投执行、API 查询）只拿到最终一致的视图。
type PriceCache struct {
	mu    sync.RWMutex
	ticks map[string]model.Tick
}

func NewPriceCache() *PriceCache {
	return &PriceCache{ticks: make(map[string]model.Tick)}
}

// Update stores the tick unless a newer one is already cached.
// Returns false when the tick was rejected as stale or duplicate.
func (c *PriceCache) Update(tick model.Tick) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.ticks[tick.Symbol]; ok && !tick.Timestamp.After(prev.Timestamp) {
		return false
	}
	c.ticks[tick.Symbol] = tick
	return true
}

// Last returns the latest known tick for a symbol.
func (c *PriceCache) Last(symbol string) (model.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tick, ok := c.ticks[symbol]
	return tick, ok
}

// Symbols returns all symbols with a cached tick.
func (c *PriceCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbols := make([]string, 0, len(c.ticks))
	for sym := range c.ticks {
		symbols = append(symbols, sym)
	}
	return symbols
}
