package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/tick-backtester/internal/fees"
)

// TestPosition_OpenSkipsZeroQuantity tests that a bet below one unit leaves the position flat
func TestPosition_OpenSkipsZeroQuantity(t *testing.T) {
	p := NewPosition(50, fees.Zero)

	assert.False(t, p.Open(0, 20240105093100, 100, ""))
	assert.False(t, p.Holding())
	assert.False(t, p.Open(0, 20240105093100, 0, ""), "non-positive price")
}

// TestPosition_OpenAndView tests the Flat -> Holding transition
func TestPosition_OpenAndView(t *testing.T) {
	p := NewPosition(1050, fees.Zero)

	require.True(t, p.Open(3, 20240105093100, 100, ""))
	assert.False(t, p.Open(4, 20240105093200, 100, ""), "already holding")

	view := p.View()
	assert.True(t, view.Holding)
	assert.Equal(t, 3, view.EntryIndex)
	assert.Equal(t, 100.0, view.EntryPrice)
	assert.Equal(t, 10.0, view.Quantity, "floor(1050/100)")
	assert.Equal(t, 0.0, view.BestReturnPct)
	assert.Equal(t, 0.0, view.WorstReturnPct)

	count, amount := p.Exposure()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1000.0, amount)
}

// TestPosition_MarkTracksExtremes tests best and worst return tracking while holding
func TestPosition_MarkTracksExtremes(t *testing.T) {
	p := NewPosition(1000, fees.Zero)
	require.True(t, p.Open(0, 20240105093100, 100, ""))

	for _, price := range []float64{110, 90, 100} {
		p.Mark(price)
	}

	view := p.View()
	assert.InDelta(t, 0.0, view.ReturnPct, 1e-9)
	assert.InDelta(t, 10.0, view.BestReturnPct, 1e-9)
	assert.InDelta(t, -10.0, view.WorstReturnPct, 1e-9)
}

// TestPosition_AddBuyAveragesEntry tests split buys and the split limit
func TestPosition_AddBuyAveragesEntry(t *testing.T) {
	p := NewPosition(1000, fees.Zero)
	assert.False(t, p.AddBuy(20240105093100, 100, 3), "flat")

	require.True(t, p.Open(0, 20240105093100, 100, "dip"))
	require.True(t, p.AddBuy(20240105093200, 80, 1))
	assert.False(t, p.AddBuy(20240105093300, 60, 1), "limit reached")

	view := p.View()
	assert.Equal(t, 22.0, view.Quantity)
	assert.InDelta(t, 1960.0/22.0, view.EntryPrice, 1e-9)
	assert.Equal(t, 1, view.SplitCount)

	rec := p.Close(20240105093400, 50, 7)
	assert.Equal(t, "20240105093100:100;20240105093200:80", rec.AddBuyLog)
	assert.Equal(t, 1960.0, rec.EntryAmount)
	assert.Equal(t, 1100.0, rec.ExitAmount)
	assert.Equal(t, -860.0, rec.ProfitAmount)
	assert.Equal(t, "dip", rec.SignalTag)
}

// TestPosition_CloseBuildsRecord tests the Holding -> Flat transition with the simple win scenario
func TestPosition_CloseBuildsRecord(t *testing.T) {
	p := NewPosition(1000, fees.Zero)
	require.True(t, p.Open(0, 20240105093100, 100, ""))

	rec := p.Close(20240105100100, 110, 2)

	assert.Equal(t, DefaultSignalTag, rec.SignalTag)
	assert.Equal(t, 10.0, rec.Quantity)
	assert.Equal(t, 100.0, rec.ProfitAmount)
	assert.InDelta(t, 10.0, rec.ReturnPct, 1e-9)
	assert.Equal(t, int64(1800), rec.HoldingTimeSec, "wall-clock seconds")
	assert.Equal(t, 2, rec.SellReasonCode)
	assert.True(t, rec.IsValid)
	assert.Equal(t, "20240105093100:100", rec.AddBuyLog)

	assert.False(t, p.Holding())
	assert.Equal(t, 0, p.View().SplitCount)
	count, amount := p.Exposure()
	assert.Zero(t, count)
	assert.Zero(t, amount)
}
