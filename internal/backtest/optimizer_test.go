package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
)

// TestParamGrid_Combinations tests the cartesian product order
func TestParamGrid_Combinations(t *testing.T) {
	grid := ParamGrid{"tp": {1, 2}, "sl": {-1, -2, -3}}

	combos := grid.Combinations()

	require.Len(t, combos, 6)
	assert.Equal(t, map[string]float64{"sl": -1, "tp": 1}, combos[0])
	assert.Equal(t, map[string]float64{"sl": -1, "tp": 2}, combos[1])
	assert.Equal(t, map[string]float64{"sl": -3, "tp": 2}, combos[5])

	assert.Len(t, ParamGrid{}.Combinations(), 1, "no parameters is one run")
	assert.Empty(t, ParamGrid{"tp": nil}.Combinations())
}

// TestOptimizer_Run tests a sweep sharing one compiled rule set
func TestOptimizer_Run(t *testing.T) {
	rules := strategy.MustCompile(testBuyRule, `ret >= Param("tp") ? Sell(1) : (ret <= -Param("tp") && Sell(2))`)
	opt := NewOptimizer(testConfig(), rules, fees.Zero, nil, nil)

	trials, err := opt.Run(context.Background(), ParamGrid{"tp": {1, 3, 50}}, twoInstruments())

	require.NoError(t, err)
	require.Len(t, trials, 3)
	for i, trial := range trials {
		assert.Equal(t, i, trial.Turn)
		require.NotNil(t, trial.Result)
		assert.Equal(t, trial.Params["tp"], trial.Result.Params["tp"])
		for _, trade := range trial.Result.Trades {
			assert.Equal(t, i, trade.Turn)
		}
	}

	best, ok := Best(trials)
	require.True(t, ok)
	for _, trial := range trials {
		if trial.Result.Status == StatusSuccess {
			assert.GreaterOrEqual(t, best.Score, trial.Score)
		}
	}
}

// TestOptimizer_Cancelled tests that a cancelled sweep stops between trials
func TestOptimizer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opt := NewOptimizer(testConfig(), strategy.MustCompile(testBuyRule, testSellRule), fees.Zero, ByPerformanceIndex, nil)

	trials, err := opt.Run(ctx, ParamGrid{"k": {1, 2}}, twoInstruments())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, trials)
}

// TestBest_IgnoresFailedTrials tests that only successful runs can win
func TestBest_IgnoresFailedTrials(t *testing.T) {
	trials := []Trial{
		{Turn: 0, Score: 99, Result: &RunResult{Status: StatusNoTrades}},
		{Turn: 1, Score: 2, Result: &RunResult{Status: StatusSuccess}},
		{Turn: 2, Score: 2, Result: &RunResult{Status: StatusSuccess}},
	}

	best, ok := Best(trials)
	require.True(t, ok)
	assert.Equal(t, 1, best.Turn)

	_, ok = Best(trials[:1])
	assert.False(t, ok)
}
