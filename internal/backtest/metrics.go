package backtest

import (
	"math"
	"sort"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// MetricsResult summarizes one run. TotalProfitAmount keeps full float
// precision rather than truncating to whole currency units.
type MetricsResult struct {
	TradeCount              int     `json:"trade_count"`
	AvgDailyTradeCount      float64 `json:"avg_daily_trade_count"`
	ProfitTradeCount        int     `json:"profit_trade_count"`
	LossTradeCount          int     `json:"loss_trade_count"`
	WinRatePct              float64 `json:"win_rate_pct"`
	AvgHoldingTimeSec       float64 `json:"avg_holding_time_sec"`
	AvgReturnPct            float64 `json:"avg_return_pct"`
	TotalReturnPct          float64 `json:"total_return_pct"`
	TotalProfitAmount       float64 `json:"total_profit_amount"`
	MaxExposureCount        int     `json:"max_exposure_count"`
	RequiredCapital         float64 `json:"required_capital"`
	CAGRProxy               float64 `json:"cagr_proxy"`
	TradingPerformanceIndex float64 `json:"trading_performance_index"`
	MaxDrawdownPct          float64 `json:"max_drawdown_pct"`
	MaxDrawdownAmount       float64 `json:"max_drawdown_amount"`
}

// MetricsInput is everything the reduction reads
type MetricsInput struct {
	Trades       []TradeRecord    // sorted, CumulativeProfit filled
	Exposure     []ExposureSample // rows with open positions only
	BetAmount    float64
	AssetClass   types.AssetClass
	DayCount     int
	TrimFraction float64
}

// CalculateMetrics reduces the trade and exposure tables. Degenerate inputs
// fall back to documented substitutes and are noted in stats, which may be nil.
func CalculateMetrics(in MetricsInput, stats *bterrors.ErrorStats) MetricsResult {
	var m MetricsResult
	n := len(in.Trades)
	if n == 0 {
		return m
	}
	m.TradeCount = n

	var holdSum, retSum, profitSum float64
	var winRetSum, lossRetSum float64
	for _, t := range in.Trades {
		holdSum += float64(t.HoldingTimeSec)
		retSum += t.ReturnPct
		profitSum += t.ProfitAmount
		if t.ProfitAmount >= 0 {
			m.ProfitTradeCount++
			winRetSum += t.ReturnPct
		} else {
			m.LossTradeCount++
			lossRetSum += t.ReturnPct
		}
	}
	m.WinRatePct = 100 * float64(m.ProfitTradeCount) / float64(n)
	m.AvgHoldingTimeSec = holdSum / float64(n)
	m.AvgReturnPct = retSum / float64(n)
	m.TotalProfitAmount = profitSum

	m.MaxExposureCount, m.RequiredCapital = exposureBounds(in.Exposure, in.TrimFraction)
	if m.RequiredCapital <= 0 {
		m.RequiredCapital = in.BetAmount
	}

	denominator := math.Max(m.RequiredCapital, in.BetAmount)
	if denominator == 0 {
		denominator = in.BetAmount
	}
	if denominator != 0 {
		m.TotalReturnPct = 100 * m.TotalProfitAmount / denominator
	} else {
		note(stats, "total_return", "bet amount is zero")
	}

	if in.DayCount > 0 {
		m.AvgDailyTradeCount = float64(n) / float64(in.DayCount)
		m.CAGRProxy = m.TotalReturnPct / float64(in.DayCount) * in.AssetClass.TradingDaysPerYear()
	} else {
		note(stats, "cagr_proxy", "day count is zero")
	}

	m.TradingPerformanceIndex = 1.0
	if m.LossTradeCount > 0 {
		avgLoss := lossRetSum / float64(m.LossTradeCount)
		avgWin := 0.0
		if m.ProfitTradeCount > 0 {
			avgWin = winRetSum / float64(m.ProfitTradeCount)
		}
		if avgLoss != 0 {
			m.TradingPerformanceIndex = m.WinRatePct / 100 * (1 + avgWin/math.Abs(avgLoss))
		} else {
			note(stats, "trading_performance_index", "average loss return is zero")
		}
	}

	cum := make([]float64, n)
	for i, t := range in.Trades {
		cum[i] = t.CumulativeProfit
	}
	amount, pct, ok := MaxDrawdown(cum, m.RequiredCapital)
	if !ok {
		note(stats, "max_drawdown", "no peak precedes the deepest trough")
		amount = math.Abs(m.TotalProfitAmount)
		pct = math.Abs(m.TotalReturnPct)
	}
	m.MaxDrawdownAmount = amount
	m.MaxDrawdownPct = pct
	return m
}

// TrimExposure orders rows by open count, highest first, and drops the
// leading floor(fraction*len) rows as outliers.
func TrimExposure(rows []ExposureSample, fraction float64) []ExposureSample {
	sorted := append([]ExposureSample(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenPositionCount > sorted[j].OpenPositionCount
	})
	if fraction <= 0 {
		return sorted
	}
	drop := int(math.Floor(fraction * float64(len(sorted))))
	return sorted[drop:]
}

func exposureBounds(rows []ExposureSample, fraction float64) (int, float64) {
	maxCount, maxAmount := 0, 0.0
	for _, r := range TrimExposure(rows, fraction) {
		if r.OpenPositionCount > maxCount {
			maxCount = r.OpenPositionCount
		}
		if r.ExposureAmount > maxAmount {
			maxAmount = r.ExposureAmount
		}
	}
	return maxCount, maxAmount
}

// MaxDrawdown finds the deepest trough below a running peak of the
// cumulative profit series and the peak before it. ok is false when the
// trough is the first point or the percentage denominator is zero.
func MaxDrawdown(cum []float64, requiredCapital float64) (amount, pct float64, ok bool) {
	if len(cum) == 0 {
		return 0, 0, false
	}
	lower, deepest := 0, 0.0
	peak := cum[0]
	for i, c := range cum {
		if c > peak {
			peak = c
		}
		if dd := peak - c; dd > deepest {
			deepest = dd
			lower = i
		}
	}
	if lower == 0 {
		return 0, 0, false
	}
	upper := 0
	for i := 1; i < lower; i++ {
		if cum[i] > cum[upper] {
			upper = i
		}
	}
	denominator := cum[upper] + requiredCapital
	if denominator == 0 {
		return 0, 0, false
	}
	amount = math.Abs(cum[upper] - cum[lower])
	return amount, 100 * amount / denominator, true
}

func note(stats *bterrors.ErrorStats, op, msg string) {
	if stats == nil {
		return
	}
	stats.RecordError(bterrors.NewDegenerateMetricsError(op, msg))
}
