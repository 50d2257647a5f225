package strategies

import (
	"math"

	"gridtrade.com/internal/model"
)

// round2 价格保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round4 数量保留四位小数
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// CalculateGridLevels computes the price levels for a grid configuration.
// Levels are strictly inside (lowerPrice, upperPrice), ascending, rounded to
// 2 decimal places. Returns an empty slice when the configuration is invalid
// (levels <= 0 or upper <= lower); validation errors are surfaced at creation
// time, not here.
func CalculateGridLevels(cfg model.GridConfig) []float64 {
	if cfg.Levels <= 0 || cfg.UpperPrice <= cfg.LowerPrice {
		return []float64{}
	}

	levels := make([]float64, 0, cfg.Levels)

	switch cfg.GridType {
	case model.GridTypeGeometric:
		if cfg.LowerPrice <= 0 {
			return []float64{}
		}
		// 等比网格: factor = (u/l)^(1/(N+1))
		factor := math.Pow(cfg.UpperPrice/cfg.LowerPrice, 1/float64(cfg.Levels+1))
		price := cfg.LowerPrice
		for i := 0; i < cfg.Levels; i++ {
			price *= factor
			levels = append(levels, round2(price))
		}
	default:
		// 等差网格: step = (u-l)/(N+1)
		step := (cfg.UpperPrice - cfg.LowerPrice) / float64(cfg.Levels+1)
		for i := 1; i <= cfg.Levels; i++ {
			levels = append(levels, round2(cfg.LowerPrice+step*float64(i)))
		}
	}

	return levels
}

// QuantityPerLevel returns the order quantity used at every grid level.
// An explicit qtyPerOrder wins; otherwise the investment is split evenly
// across the levels and converted to quantity at the reference price,
// rounded to 4 decimal places. refPrice <= 0 falls back to the band midpoint.
func QuantityPerLevel(cfg model.GridConfig, refPrice float64) float64 {
	if cfg.QtyPerOrder > 0 {
		return cfg.QtyPerOrder
	}
	if cfg.Levels <= 0 || cfg.Investment <= 0 {
		return 0
	}
	if refPrice <= 0 {
		refPrice = (cfg.UpperPrice + cfg.LowerPrice) / 2
	}
	if refPrice <= 0 {
		return 0
	}
	return round4(cfg.Investment / float64(cfg.Levels) / refPrice)
}
