package backtest

import (
	"log"
	"math"

	"gridtrade.com/internal/model"
	"gridtrade.com/internal/strategies"
)

// backtestTolerance 回测撮合容差 (比实盘的 0.1% 放宽一倍, 补偿日线粒度)
const backtestTolerance = 0.002

// maxReportedTrades limits how many trades a replay returns; the stats still
// cover the full series.
const maxReportedTrades = 50

type gridPosition struct {
	price    float64
	quantity float64
}

// RunGrid replays a grid configuration over a historical candle series using
// close prices. Each level holds at most one open position per direction;
// Neutral mode trades both cycles, Long only buy-low/sell-above, Short only
// sell-high/cover-below.
func RunGrid(cfg model.GridConfig, candles []model.Candle) (model.GridBacktestStats, []model.BacktestTrade) {
	levels := strategies.CalculateGridLevels(cfg)

	var trades []model.BacktestTrade
	longPositions := make(map[int]gridPosition)  // level index -> open buy
	shortPositions := make(map[int]gridPosition) // level index -> open sell

	totalPnL := 0.0
	winning := 0
	losing := 0
	peakValue := cfg.Investment
	maxDrawdown := 0.0

	log.Printf("Backtest: Starting grid replay over %d candles, %d levels", len(candles), len(levels))

	for c := range candles {
		price := candles[c].Close

		for i, level := range levels {
			tol := level * backtestTolerance
			if math.Abs(price-level) > tol {
				continue
			}

			qty := strategies.QuantityPerLevel(cfg, price)

			if cfg.Mode == model.GridModeNeutral || cfg.Mode == model.GridModeLong {
				// 低位买入
				if level < price {
					if _, open := longPositions[i]; !open {
						trades = append(trades, model.BacktestTrade{
							Type:      model.OrderTypeBuy,
							Price:     level,
							Quantity:  qty,
							Timestamp: candles[c].Timestamp,
							GridLevel: i + 1,
						})
						longPositions[i] = gridPosition{price: level, quantity: qty}
					}
				}
				// 高位卖出: 了结下一格的买入持仓
				if level > price {
					if pos, open := longPositions[i-1]; open {
						pnl := (level - pos.price) * pos.quantity
						trades = append(trades, model.BacktestTrade{
							Type:      model.OrderTypeSell,
							Price:     level,
							Quantity:  pos.quantity,
							Timestamp: candles[c].Timestamp,
							PnL:       pnl,
							GridLevel: i + 1,
						})
						delete(longPositions, i-1)
						totalPnL += pnl
						if pnl > 0 {
							winning++
						} else {
							losing++
						}
					}
				}
			}

			if cfg.Mode == model.GridModeNeutral || cfg.Mode == model.GridModeShort {
				// 高位卖出开仓
				if level > price {
					if _, open := shortPositions[i]; !open {
						trades = append(trades, model.BacktestTrade{
							Type:      model.OrderTypeSell,
							Price:     level,
							Quantity:  qty,
							Timestamp: candles[c].Timestamp,
							GridLevel: i + 1,
						})
						shortPositions[i] = gridPosition{price: level, quantity: qty}
					}
				}
				// 低位买入平仓: 了结上一格的卖出持仓
				if level < price {
					if pos, open := shortPositions[i+1]; open {
						pnl := (pos.price - level) * pos.quantity
						trades = append(trades, model.BacktestTrade{
							Type:      model.OrderTypeBuy,
							Price:     level,
							Quantity:  pos.quantity,
							Timestamp: candles[c].Timestamp,
							PnL:       pnl,
							GridLevel: i + 1,
						})
						delete(shortPositions, i+1)
						totalPnL += pnl
						if pnl > 0 {
							winning++
						} else {
							losing++
						}
					}
				}
			}
		}

		// 峰谷回撤基于累计权益曲线
		currentValue := cfg.Investment + totalPnL
		if currentValue > peakValue {
			peakValue = currentValue
		}
		if peakValue > 0 {
			dd := (peakValue - currentValue) / peakValue * 100
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	stats := model.GridBacktestStats{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  losing,
		TotalPnL:      round2(totalPnL),
		MaxDrawdown:   round2(maxDrawdown),
		SharpeRatio:   round2(sharpeRatio(trades, cfg.Investment)),
	}
	if cfg.Investment > 0 {
		stats.ROI = round2(totalPnL / cfg.Investment * 100)
	}
	if len(trades) > 0 {
		stats.WinRate = round2(float64(winning) / float64(len(trades)) * 100)
	}

	return stats, lastN(trades, maxReportedTrades)
}

// sharpeRatio is the naive per-trade Sharpe: mean return over its standard
// deviation, 0 when the variance is zero.
func sharpeRatio(trades []model.BacktestTrade, investment float64) float64 {
	if len(trades) == 0 || investment <= 0 {
		return 0
	}
	mean := 0.0
	for i := range trades {
		mean += trades[i].PnL / investment
	}
	mean /= float64(len(trades))

	variance := 0.0
	for i := range trades {
		r := trades[i].PnL / investment
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(trades))

	if variance <= 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

func lastN(trades []model.BacktestTrade, n int) []model.BacktestTrade {
	if len(trades) <= n {
		return trades
	}
	return trades[len(trades)-n:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
