package backtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/monitoring"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

func twoInstruments() []*types.TickSeries {
	return []*types.TickSeries{
		newSeries("A",
			generateTicks(20240105, 931, 100, 104, 98, 103, 110, 101),
			generateTicks(20240108, 931, 100, 95, 97, 99),
		),
		newSeries("B",
			generateTicks(20240105, 930, 50, 51, 49, 55),
			generateTicks(20240108, 930, 40, 44, 46),
		),
	}
}

const (
	testBuyRule  = "Buy()"
	testSellRule = "ret >= 3 ? Sell(1) : (ret <= -3 && Sell(2))"
)

// TestRunner_Success tests a multi-instrument run end to end
func TestRunner_Success(t *testing.T) {
	cfg := testConfig()
	cfg.Label = "momentum"
	health := monitoring.NewHealthChecker()

	res := NewRunner(cfg, fees.Zero, WithHealth(health)).Run(context.Background(), testBuyRule, testSellRule, twoInstruments())

	require.Equal(t, StatusSuccess, res.Status)
	assert.NoError(t, res.Err)
	_, err := uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "momentum", res.Label)
	assert.Equal(t, 2, res.DayCount)
	assert.Equal(t, 2, res.Diagnostics.Instruments)
	assert.Equal(t, 17, res.Diagnostics.Ticks)
	assert.Equal(t, len(res.Trades), res.Metrics.TradeCount)
	assert.Equal(t, res.Metrics.TradeCount, res.Metrics.ProfitTradeCount+res.Metrics.LossTradeCount)

	sum := 0.0
	for k, trade := range res.Trades {
		sum += trade.ProfitAmount
		assert.InDelta(t, sum, trade.CumulativeProfit, 1e-9, "row %d", k)
		if k > 0 {
			assert.LessOrEqual(t, res.Trades[k-1].EntryTimestamp, trade.EntryTimestamp)
		}
		if trade.SellReasonCode != SessionEnd {
			assert.Equal(t, types.DateOf(trade.EntryTimestamp), types.DateOf(trade.ExitTimestamp))
		}
	}
	for _, row := range res.Exposure {
		assert.Greater(t, row.OpenPositionCount, 0)
	}

	snap := health.Snapshot()
	assert.Equal(t, string(StatusSuccess), snap.LastStatus)
	assert.Equal(t, 2, snap.Completed)
}

// TestRunner_DeterministicAcrossWorkerCounts tests that parallelism does not change the result
func TestRunner_DeterministicAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) *RunResult {
		cfg := testConfig()
		cfg.Workers = workers
		return NewRunner(cfg, fees.Zero).Run(context.Background(), testBuyRule, testSellRule, twoInstruments())
	}

	serial, parallel := run(1), run(4)

	require.Equal(t, len(serial.Trades), len(parallel.Trades))
	for i := range serial.Trades {
		a, b := serial.Trades[i], parallel.Trades[i]
		a.Slot, b.Slot = 0, 0
		assert.Equal(t, a, b)
	}
	assert.Equal(t, serial.Metrics, parallel.Metrics)
	assert.Equal(t, serial.Exposure, parallel.Exposure)
}

// TestRunner_RuleCompileFailure tests the compile failure status
func TestRunner_RuleCompileFailure(t *testing.T) {
	res := NewRunner(testConfig(), fees.Zero).Run(context.Background(), "price >", "Sell(1)", twoInstruments())

	assert.Equal(t, StatusRuleCompileFailure, res.Status)
	assert.ErrorIs(t, res.Err, bterrors.ErrRuleCompile)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Trades)
	assert.Equal(t, MetricsResult{}, res.Metrics)
}

// TestRunner_EmptyInput tests empty instrument lists and empty series
func TestRunner_EmptyInput(t *testing.T) {
	runner := NewRunner(testConfig(), fees.Zero)

	for name, series := range map[string][]*types.TickSeries{
		"no instruments": nil,
		"no ticks":       {newSeries("A"), newSeries("B")},
	} {
		t.Run(name, func(t *testing.T) {
			var res *RunResult
			require.NotPanics(t, func() {
				res = runner.Run(context.Background(), testBuyRule, testSellRule, series)
			})
			assert.Equal(t, StatusEmptyInput, res.Status)
			assert.ErrorIs(t, res.Err, bterrors.ErrEmptyInput)
			assert.Equal(t, MetricsResult{}, res.Metrics)
			assert.Zero(t, res.Metrics.MaxDrawdownAmount)
		})
	}
}

// TestRunner_EmptySeriesIsolated tests that one empty instrument does not affect the others
func TestRunner_EmptySeriesIsolated(t *testing.T) {
	series := append(twoInstruments(), newSeries("EMPTY"))

	res := NewRunner(testConfig(), fees.Zero).Run(context.Background(), testBuyRule, testSellRule, series)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Diagnostics.Instruments)
	assert.Equal(t, 1, res.Diagnostics.Errors.Count(bterrors.ErrorCategoryEmptyInput))
}

// TestRunner_NoTrades tests that a silent rule is distinguishable from a broken one
func TestRunner_NoTrades(t *testing.T) {
	res := NewRunner(testConfig(), fees.Zero).Run(context.Background(), "false", "Sell(1)", twoInstruments())

	assert.Equal(t, StatusNoTrades, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Exposure)
}

// TestRunner_Aborted tests cancellation before any instrument starts
func TestRunner_Aborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRunner(testConfig(), fees.Zero).Run(ctx, testBuyRule, testSellRule, twoInstruments())

	assert.Equal(t, StatusAborted, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.Trades)
}

// TestRunner_ConfiguredDayCount tests that an explicit day count wins over the derived one
func TestRunner_ConfiguredDayCount(t *testing.T) {
	cfg := testConfig()
	cfg.DayCount = 10

	res := NewRunner(cfg, fees.Zero).Run(context.Background(), testBuyRule, testSellRule, twoInstruments())

	assert.Equal(t, 10, res.DayCount)
	assert.InDelta(t, res.Metrics.TotalReturnPct/10*250, res.Metrics.CAGRProxy, 1e-9)
}

// TestRunner_TurnStampedOnTrades tests the sweep index on records
func TestRunner_TurnStampedOnTrades(t *testing.T) {
	res := NewRunner(testConfig(), fees.Zero, WithTurn(7)).Run(context.Background(), testBuyRule, testSellRule, twoInstruments())

	require.NotEmpty(t, res.Trades)
	assert.Equal(t, 7, res.Turn)
	for _, trade := range res.Trades {
		assert.Equal(t, 7, trade.Turn)
	}
}
