package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtrade.com/internal/model"
)

func TestCalculateGridLevelsArithmetic(t *testing.T) {
	cfg := model.GridConfig{
		GridType:   model.GridTypeArithmetic,
		LowerPrice: 100,
		UpperPrice: 110,
		Levels:     3,
	}

	levels := CalculateGridLevels(cfg)
	require.Equal(t, []float64{102.5, 105, 107.5}, levels)
}

func TestCalculateGridLevelsGeometric(t *testing.T) {
	cfg := model.GridConfig{
		GridType:   model.GridTypeGeometric,
		LowerPrice: 100,
		UpperPrice: 200,
		Levels:     3,
	}

	levels := CalculateGridLevels(cfg)
	require.Len(t, levels, 3)

	// 相邻价位的比值应当恒定: (200/100)^(1/4)
	factor := 1.189207
	assert.InDelta(t, 100*factor, levels[0], 0.01)
	assert.InDelta(t, levels[0]*factor, levels[1], 0.01)
	assert.InDelta(t, levels[1]*factor, levels[2], 0.01)

	// 严格落在区间内部
	for _, lv := range levels {
		assert.Greater(t, lv, cfg.LowerPrice)
		assert.Less(t, lv, cfg.UpperPrice)
	}
}

func TestCalculateGridLevelsStrictlyInsideBand(t *testing.T) {
	cfg := model.GridConfig{
		GridType:   model.GridTypeArithmetic,
		LowerPrice: 50,
		UpperPrice: 51,
		Levels:     9,
	}

	levels := CalculateGridLevels(cfg)
	require.Len(t, levels, 9)
	for i, lv := range levels {
		assert.Greater(t, lv, cfg.LowerPrice)
		assert.Less(t, lv, cfg.UpperPrice)
		if i > 0 {
			assert.Greater(t, lv, levels[i-1], "levels must be ascending")
		}
	}
}

func TestCalculateGridLevelsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.GridConfig
	}{
		{"zero levels", model.GridConfig{LowerPrice: 100, UpperPrice: 110, Levels: 0}},
		{"inverted band", model.GridConfig{LowerPrice: 110, UpperPrice: 100, Levels: 3}},
		{"equal bounds", model.GridConfig{LowerPrice: 100, UpperPrice: 100, Levels: 3}},
		{"geometric zero lower", model.GridConfig{GridType: model.GridTypeGeometric, LowerPrice: 0, UpperPrice: 100, Levels: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, CalculateGridLevels(tt.cfg))
		})
	}
}

func TestQuantityPerLevel(t *testing.T) {
	t.Run("explicit override wins", func(t *testing.T) {
		cfg := model.GridConfig{QtyPerOrder: 5, Investment: 10000, Levels: 4}
		assert.Equal(t, 5.0, QuantityPerLevel(cfg, 100))
	})

	t.Run("derived from investment", func(t *testing.T) {
		cfg := model.GridConfig{Investment: 10000, Levels: 4, LowerPrice: 90, UpperPrice: 110}
		// (10000/4)/100 = 25
		assert.Equal(t, 25.0, QuantityPerLevel(cfg, 100))
	})

	t.Run("rounded to 4 decimal places", func(t *testing.T) {
		cfg := model.GridConfig{Investment: 1000, Levels: 3, LowerPrice: 90, UpperPrice: 110}
		// (1000/3)/102.6 = 3.24885...
		assert.Equal(t, 3.2489, QuantityPerLevel(cfg, 102.6))
	})

	t.Run("zero reference falls back to band midpoint", func(t *testing.T) {
		cfg := model.GridConfig{Investment: 1000, Levels: 2, LowerPrice: 90, UpperPrice: 110}
		// (1000/2)/100 = 5
		assert.Equal(t, 5.0, QuantityPerLevel(cfg, 0))
	})

	t.Run("invalid config yields zero", func(t *testing.T) {
		assert.Zero(t, QuantityPerLevel(model.GridConfig{}, 100))
	})
}
