package indicators

import (
	"testing"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
	"github.com/stretchr/testify/assert"
)

// makeTicks builds a minute series whose last price follows prices
func makeTicks(prices ...float64) []types.TickRecord {
	ticks := make([]types.TickRecord, len(prices))
	for i, p := range prices {
		ticks[i] = types.TickRecord{
			Timestamp: 20240105090000 + int64(i)*100,
			LastPrice: p,
			High:      p + 1,
			Low:       p - 1,
		}
	}
	return ticks
}

func TestLag(t *testing.T) {
	ticks := makeTicks(10, 11, 12, 13)

	assert.Equal(t, 13.0, Lag(ticks, types.FieldLastPrice, 3, 0))
	assert.Equal(t, 11.0, Lag(ticks, types.FieldLastPrice, 3, 2))
	assert.Equal(t, 0.0, Lag(ticks, types.FieldLastPrice, 1, 2), "reads before index 0")
	assert.Equal(t, 0.0, Lag(ticks, types.FieldLastPrice, 4, 0), "reads past the end")
	assert.Equal(t, 0.0, Lag(ticks, types.FieldLastPrice, 2, -1))
}

func TestMean(t *testing.T) {
	ticks := makeTicks(10, 20, 30, 40, 50)

	tests := []struct {
		name string
		i, w int
		want float64
	}{
		{"full window", 4, 5, 30},
		{"short window", 4, 2, 45},
		{"single tick", 2, 1, 30},
		{"warming up", 1, 3, 0},
		{"zero window", 3, 0, 0},
		{"beyond series", 5, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(ticks, types.FieldLastPrice, tt.i, tt.w), 1e-9)
		})
	}
}

func TestMeanFrom(t *testing.T) {
	ticks := makeTicks(10, 20, 30, 40)

	assert.InDelta(t, 30.0, MeanFrom(ticks, types.FieldLastPrice, 1, 3), 1e-9)
	assert.InDelta(t, 40.0, MeanFrom(ticks, types.FieldLastPrice, 3, 3), 1e-9)
	assert.Equal(t, 0.0, MeanFrom(ticks, types.FieldLastPrice, 3, 2))
	assert.Equal(t, 0.0, MeanFrom(ticks, types.FieldLastPrice, -1, 2))
}

func TestHighestLowest(t *testing.T) {
	ticks := makeTicks(10, 30, 20, 5, 15)

	assert.Equal(t, 31.0, Highest(ticks, types.FieldHigh, 4, 5))
	assert.Equal(t, 21.0, Highest(ticks, types.FieldHigh, 4, 3))
	assert.Equal(t, 4.0, Lowest(ticks, types.FieldLow, 4, 3))
	assert.Equal(t, 9.0, Lowest(ticks, types.FieldLow, 1, 2))
	assert.Equal(t, 0.0, Highest(ticks, types.FieldHigh, 1, 3))
	assert.Equal(t, 0.0, Lowest(ticks, types.FieldLow, 1, 3))

	assert.Equal(t, 20.0, HighestFrom(ticks, types.FieldLastPrice, 2, 4))
	assert.Equal(t, 5.0, LowestFrom(ticks, types.FieldLastPrice, 2, 4))
	assert.Equal(t, 0.0, HighestFrom(ticks, types.FieldLastPrice, 5, 4))
}

func TestAngle(t *testing.T) {
	ticks := makeTicks(100, 101, 102, 103, 104)

	assert.InDelta(t, 45.0, Angle(ticks, types.FieldLastPrice, 4, 4, 1), 1e-9)
	assert.InDelta(t, -45.0, Angle(makeTicks(104, 103, 102, 101, 100), types.FieldLastPrice, 4, 4, 1), 1e-9)
	assert.InDelta(t, 0.0, Angle(makeTicks(5, 5, 5), types.FieldLastPrice, 2, 2, 10), 1e-9)
	assert.Equal(t, 0.0, Angle(ticks, types.FieldLastPrice, 2, 3, 1), "window reaches before index 0")

	steep := Angle(ticks, types.FieldLastPrice, 4, 4, 10)
	assert.Greater(t, steep, 45.0)
	assert.Less(t, steep, 90.0)
}

func TestAngleOf(t *testing.T) {
	col := []float64{0, 0, 10, 11, 12}

	assert.InDelta(t, 45.0, AngleOf(col, 4, 2, 1), 1e-9)
	assert.Equal(t, 0.0, AngleOf(col, 3, 2, 1), "reference value still warming up")
	assert.Equal(t, 0.0, AngleOf(col, 5, 2, 1))
}

func TestSeriesMean(t *testing.T) {
	s := types.NewTickSeries("X", "", types.AssetCrypto, makeTicks(10, 20, 30, 40))

	assert.InDelta(t, 35.0, SeriesMean(s, 3, 2), 1e-9, "computed on the fly")

	s.PrecomputeAverages([]int{2})
	assert.InDelta(t, 35.0, SeriesMean(s, 3, 2), 1e-9, "read from joined column")
	assert.Equal(t, 0.0, SeriesMean(s, 0, 2))
	assert.Equal(t, 0.0, SeriesMean(s, 9, 2))
}

func TestWindowFunctions_DoNotMutate(t *testing.T) {
	ticks := makeTicks(3, 1, 2)
	snapshot := append([]types.TickRecord(nil), ticks...)

	Mean(ticks, types.FieldLastPrice, 2, 3)
	Highest(ticks, types.FieldLastPrice, 2, 3)
	Lowest(ticks, types.FieldLastPrice, 2, 3)
	Angle(ticks, types.FieldLastPrice, 2, 2, 1)

	assert.Equal(t, snapshot, ticks)
}

func TestSeriesAngle(t *testing.T) {
	s := types.NewTickSeries("X", "", types.AssetCrypto, makeTicks(10, 20, 30, 40))

	assert.InDelta(t, 45.0, SeriesAngle(s, 3, 2, 1, 0.1), 1e-9)
	assert.Equal(t, 0.0, SeriesAngle(s, 1, 2, 1, 0.1), "average still warming up")

	s.PrecomputeAverages([]int{2})
	assert.InDelta(t, 45.0, SeriesAngle(s, 3, 2, 1, 0.1), 1e-9)
	assert.Equal(t, 0.0, SeriesAngle(s, 1, 2, 1, 0.1))
}
