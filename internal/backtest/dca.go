package backtest

import (
	"log"

	"gridtrade.com/internal/model"
)

// RunDCA replays a DCA configuration over a historical candle series. One
// order is simulated every interval (frequency floored to whole days, at
// least one candle apart); the accumulated position is valued at the last
// close.
func RunDCA(cfg model.DCAConfig, candles []model.Candle) (model.DCABacktestStats, []model.BacktestTrade) {
	var trades []model.BacktestTrade
	totalInvestment := 0.0
	totalQuantity := 0.0

	step := cfg.IntervalDays()

	side := cfg.OrderType
	if side == "" {
		side = model.OrderTypeBuy
	}

	log.Printf("Backtest: Starting DCA replay over %d candles, interval %d day(s)", len(candles), step)

	for i := 0; i < len(candles); i += step {
		if cfg.EndCondition == model.EndConditionOrderCount && cfg.MaxOrders > 0 && len(trades) >= cfg.MaxOrders {
			break
		}

		price := candles[i].Close
		if price <= 0 {
			continue
		}
		quantity := cfg.InvestmentAmount / price

		trades = append(trades, model.BacktestTrade{
			Type:      side,
			Price:     price,
			Quantity:  quantity,
			Timestamp: candles[i].Timestamp,
		})
		totalInvestment += cfg.InvestmentAmount
		totalQuantity += quantity
	}

	stats := model.DCABacktestStats{
		TotalOrders:     len(trades),
		TotalInvestment: round2(totalInvestment),
		TotalQuantity:   round4(totalQuantity),
	}

	if len(candles) > 0 {
		stats.FinalPrice = round2(candles[len(candles)-1].Close)
	}
	if totalQuantity > 0 {
		stats.AveragePrice = round2(totalInvestment / totalQuantity)
		stats.CurrentValue = round2(totalQuantity * stats.FinalPrice)
	}
	stats.TotalPnL = round2(stats.CurrentValue - stats.TotalInvestment)
	if totalInvestment > 0 {
		stats.ROI = round2(stats.TotalPnL / stats.TotalInvestment * 100)
	}

	return stats, lastN(trades, maxReportedTrades)
}
