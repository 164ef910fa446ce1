package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/tick-backtester/pkg/data"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, splitSymbols(" btcusdt, ,ETHUSDT,"))
	assert.Empty(t, splitSymbols(""))
}

func TestDateRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	start, end, err := dateRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(-1, 0, 0), start)

	start, end, err = dateRange("2024-01-01", "2024-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, time.February, end.Month())

	_, _, err = dateRange("2024-03-01", "2024-02-01", now)
	assert.Error(t, err)
	_, _, err = dateRange("01/01/2024", "", now)
	assert.Error(t, err)
}

func TestSaveSeriesReadsBackAsCrypto(t *testing.T) {
	dir := t.TempDir()
	series := types.NewTickSeries("BTCUSDT", "BTCUSDT", types.AssetCrypto, []types.TickRecord{
		{Timestamp: 20240105000000, LastPrice: 42000, Open: 41900, High: 42100, Low: 41800, ValueTraded: 1e6},
		{Timestamp: 20240105000100, LastPrice: 42050, Open: 42000, High: 42080, Low: 41990, ValueTraded: 2e6},
	})
	require.NoError(t, saveSeries(series, filepath.Join(dir, "BTCUSDT.csv")))

	first, last := bounds(series)
	assert.Equal(t, int64(20240105000000), first)
	assert.Equal(t, int64(20240105000100), last)

	loaded, err := data.NewCSVProvider(dir, types.AssetCrypto, data.WithFormat(data.BybitCSVFormat)).
		LoadSeries(t.Context(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, series.Ticks, loaded.Ticks)
}
