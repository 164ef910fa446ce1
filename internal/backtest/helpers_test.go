package backtest

import (
	"time"

	"github.com/ducminhle1904/tick-backtester/internal/config"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// generateTicks builds one-minute ticks on date (YYYYMMDD) from hhmm on
func generateTicks(date int64, hhmm int, prices ...float64) []types.TickRecord {
	start := time.Date(int(date/10000), time.Month(date/100%100), int(date%100), hhmm/100, hhmm%100, 0, 0, time.UTC)
	ticks := make([]types.TickRecord, len(prices))
	for i, p := range prices {
		ticks[i] = types.TickRecord{
			Timestamp: types.FormatStamp(start.Add(time.Duration(i) * time.Minute)),
			LastPrice: p,
			Open:      p,
			High:      p,
			Low:       p,
		}
	}
	return ticks
}

func newSeries(code string, ticks ...[]types.TickRecord) *types.TickSeries {
	var all []types.TickRecord
	for _, t := range ticks {
		all = append(all, t...)
	}
	return types.NewTickSeries(code, code+" Corp", types.AssetEquity, all)
}

func testConfig() *config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.BetAmount = 1000
	cfg.AveragingWindows = nil
	cfg.Workers = 2
	return cfg
}

func replay(cfg *config.RunConfig, calc fees.Calculator, buy, sell string, series *types.TickSeries) InstrumentResult {
	engine := NewEngine(cfg, strategy.MustCompile(buy, sell), calc, nil)
	return engine.Replay(series, 0)
}
