package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	"github.com/ducminhle1904/tick-backtester/internal/config"
)

func TestParseFlagsApply(t *testing.T) {
	f, err := parseFlags([]string{
		"-source", "clickhouse",
		"-instruments", "A001, B002,,",
		"-bet", "500000",
		"-params", "threshold=1.5,lookback=20",
		"-formats", "console,csv",
		"-session", "090000-153000",
		"-dedupe",
	}, io.Discard)
	require.NoError(t, err)

	cfg := &config.AppConfig{Run: *config.DefaultRunConfig(), Source: "csv", DataRoot: "data"}
	require.NoError(t, f.apply(cfg))

	assert.Equal(t, "clickhouse", cfg.Source)
	assert.Equal(t, "data", cfg.DataRoot, "unset flags keep config values")
	assert.Equal(t, []string{"A001", "B002"}, cfg.Instruments)
	assert.Equal(t, 500000.0, cfg.Run.BetAmount)
	assert.Equal(t, map[string]float64{"threshold": 1.5, "lookback": 20}, cfg.Run.Params)
	assert.Equal(t, []string{"console", "csv"}, cfg.OutputFormats)
	assert.Equal(t, 90000, cfg.SessionStart)
	assert.Equal(t, 153000, cfg.SessionEnd)
	assert.True(t, cfg.DropDuplicates)
}

func TestParseFlagsErrors(t *testing.T) {
	_, err := parseFlags([]string{"-bet", "lots"}, io.Discard)
	assert.Error(t, err)

	f, err := parseFlags([]string{"-params", "threshold"}, io.Discard)
	require.NoError(t, err)
	assert.Error(t, f.apply(&config.AppConfig{Run: *config.DefaultRunConfig()}))

	for _, bad := range []string{"090000", "9am-153000", "090000-close"} {
		f, err = parseFlags([]string{"-session", bad}, io.Discard)
		require.NoError(t, err)
		assert.Error(t, f.apply(&config.AppConfig{Run: *config.DefaultRunConfig()}), bad)
	}
}

func TestParseGrid(t *testing.T) {
	grid, err := parseGrid("threshold=1,1.5,2; lookback=10,20")
	require.NoError(t, err)
	assert.Equal(t, backtest.ParamGrid{
		"threshold": {1, 1.5, 2},
		"lookback":  {10, 20},
	}, grid)
	assert.Equal(t, []string{"lookback", "threshold"}, gridAxes(grid))
	assert.Len(t, grid.Combinations(), 6)

	for _, bad := range []string{"", "threshold", "threshold=", "=1,2", "threshold=a"} {
		_, err := parseGrid(bad)
		assert.Error(t, err, bad)
	}
}

func TestObjectiveByName(t *testing.T) {
	m := backtest.MetricsResult{TotalReturnPct: 3, TradingPerformanceIndex: 7}

	obj, err := objectiveByName("")
	require.NoError(t, err)
	assert.Equal(t, 3.0, obj(m))

	obj, err = objectiveByName("TPI")
	require.NoError(t, err)
	assert.Equal(t, 7.0, obj(m))

	_, err = objectiveByName("sharpe")
	assert.Error(t, err)
}

func TestReadRules(t *testing.T) {
	dir := t.TempDir()
	buy := filepath.Join(dir, "buy.expr")
	sell := filepath.Join(dir, "sell.expr")
	require.NoError(t, os.WriteFile(buy, []byte("price > MA(3) && Buy()"), 0o644))
	require.NoError(t, os.WriteFile(sell, []byte("Sell(1)"), 0o644))

	b, s, err := readRules(buy, sell)
	require.NoError(t, err)
	assert.Equal(t, "price > MA(3) && Buy()", b)
	assert.Equal(t, "Sell(1)", s)

	_, _, err = readRules(buy, "")
	assert.Error(t, err)
	_, _, err = readRules(buy, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	zero, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	d, err := parseDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("20240105")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Day())

	_, err = parseDate("05/01/2024")
	assert.Error(t, err)
}
