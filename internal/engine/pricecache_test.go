package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtrade.com/internal/model"
)

func TestPriceCacheUpdateAndLast(t *testing.T) {
	c := NewPriceCache()

	_, ok := c.Last("NIFTY24DECFUT")
	assert.False(t, ok)

	now := time.Now()
	assert.True(t, c.Update(model.Tick{Symbol: "NIFTY24DECFUT", LTP: 102.5, Timestamp: now}))

	tick, ok := c.Last("NIFTY24DECFUT")
	require.True(t, ok)
	assert.Equal(t, 102.5, tick.LTP)
}

func TestPriceCacheRejectsStaleAndDuplicate(t *testing.T) {
	c := NewPriceCache()
	now := time.Now()

	require.True(t, c.Update(model.Tick{Symbol: "X", LTP: 100, Timestamp: now}))

	// 同一时间戳视为重复
	assert.False(t, c.Update(model.Tick{Symbol: "X", LTP: 101, Timestamp: now}))
	// 更早的时间戳视为过期
	assert.False(t, c.Update(model.Tick{Symbol: "X", LTP: 102, Timestamp: now.Add(-time.Second)}))

	tick, _ := c.Last("X")
	assert.Equal(t, 100.0, tick.LTP)

	// 新时间戳正常覆盖
	assert.True(t, c.Update(model.Tick{Symbol: "X", LTP: 103, Timestamp: now.Add(time.Second)}))
	tick, _ = c.Last("X")
	assert.Equal(t, 103.0, tick.LTP)
}

func TestPriceCacheSymbols(t *testing.T) {
	c := NewPriceCache()
	now := time.Now()
	c.Update(model.Tick{Symbol: "A", LTP: 1, Timestamp: now})
	c.Update(model.Tick{Symbol: "B", LTP: 2, Timestamp: now})

	assert.ElementsMatch(t, []string{"A", "B"}, c.Symbols())
}
