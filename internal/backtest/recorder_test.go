package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssembleTrades_SortsAndAccumulates tests the stable sort and the cumulative-sum invariant
func TestAssembleTrades_SortsAndAccumulates(t *testing.T) {
	a := []TradeRecord{
		{Label: "A", EntryTimestamp: 20240105093100, ProfitAmount: 10},
		{Label: "A", EntryTimestamp: 20240105100000, ProfitAmount: -4},
	}
	b := []TradeRecord{
		{Label: "B", EntryTimestamp: 20240105093100, ProfitAmount: 2.5},
		{Label: "B", EntryTimestamp: 20240105090000, ProfitAmount: 7},
	}

	trades := AssembleTrades(a, b)

	require.Len(t, trades, 4)
	assert.Equal(t, []string{"B", "A", "B", "A"}, labels(trades), "ties keep instrument order")
	assert.Equal(t, int64(20240105090000), trades[0].EntryTimestamp)

	sum := 0.0
	for k, trade := range trades {
		sum += trade.ProfitAmount
		assert.Equal(t, sum, trade.CumulativeProfit, "row %d", k)
	}
	assert.Equal(t, 15.5, trades[3].CumulativeProfit)
}

// TestAssembleTrades_Empty tests assembly without trades
func TestAssembleTrades_Empty(t *testing.T) {
	assert.Empty(t, AssembleTrades())
	assert.Empty(t, AssembleTrades(nil, []TradeRecord{}))
}

// TestAssembleTrades_DoesNotMutateInput tests that per-instrument logs are copied
func TestAssembleTrades_DoesNotMutateInput(t *testing.T) {
	a := []TradeRecord{{EntryTimestamp: 2, ProfitAmount: 1}, {EntryTimestamp: 1, ProfitAmount: 1}}

	AssembleTrades(a)

	assert.Equal(t, int64(2), a[0].EntryTimestamp)
	assert.Zero(t, a[0].CumulativeProfit)
}

// TestMergeExposure tests the as-of merge across instruments and the zero-count filter
func TestMergeExposure(t *testing.T) {
	a := []ExposureSample{
		{Timestamp: 1, OpenPositionCount: 1, ExposureAmount: 100},
		{Timestamp: 3},
	}
	b := []ExposureSample{
		{Timestamp: 2, OpenPositionCount: 1, ExposureAmount: 50},
		{Timestamp: 3, OpenPositionCount: 1, ExposureAmount: 50},
		{Timestamp: 4},
	}

	rows := MergeExposure(a, b)

	assert.Equal(t, []ExposureSample{
		{Timestamp: 1, OpenPositionCount: 1, ExposureAmount: 100},
		{Timestamp: 2, OpenPositionCount: 2, ExposureAmount: 150},
		{Timestamp: 3, OpenPositionCount: 1, ExposureAmount: 50},
	}, rows)
}

// TestMergeExposure_AllFlat tests that a run without open positions yields no rows
func TestMergeExposure_AllFlat(t *testing.T) {
	rows := MergeExposure([]ExposureSample{{Timestamp: 1}, {Timestamp: 2}})
	assert.Empty(t, rows)
}

func labels(trades []TradeRecord) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.Label
	}
	return out
}
