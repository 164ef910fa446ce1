package indicators

import (
	"math"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// Rolling window functions over a borrowed tick slice. All of them are pure,
// never allocate and return 0 when the requested span falls outside the series.

// span returns the first index of the window [i-w+1, i]
func span(n, i, w int) (int, bool) {
	if w <= 0 || i < 0 || i >= n {
		return 0, false
	}
	lo := i - w + 1
	if lo < 0 {
		return 0, false
	}
	return lo, true
}

// fromSpan validates the window [ref, i]
func fromSpan(n, ref, i int) bool {
	return ref >= 0 && ref <= i && i < n
}

// Lag returns field f at index i-lag
func Lag(ticks []types.TickRecord, f types.Field, i, lag int) float64 {
	j := i - lag
	if lag < 0 || j < 0 || i >= len(ticks) {
		return 0
	}
	return ticks[j].Value(f)
}

// Mean returns the arithmetic mean of f over [i-w+1, i]
func Mean(ticks []types.TickRecord, f types.Field, i, w int) float64 {
	lo, ok := span(len(ticks), i, w)
	if !ok {
		return 0
	}
	return sum(ticks, f, lo, i) / float64(w)
}

// MeanFrom returns the mean of f over [ref, i], used for "since entry" windows
func MeanFrom(ticks []types.TickRecord, f types.Field, ref, i int) float64 {
	if !fromSpan(len(ticks), ref, i) {
		return 0
	}
	return sum(ticks, f, ref, i) / float64(i-ref+1)
}

// Highest returns the maximum of f over [i-w+1, i]
func Highest(ticks []types.TickRecord, f types.Field, i, w int) float64 {
	lo, ok := span(len(ticks), i, w)
	if !ok {
		return 0
	}
	return extreme(ticks, f, lo, i, true)
}

// Lowest returns the minimum of f over [i-w+1, i]
func Lowest(ticks []types.TickRecord, f types.Field, i, w int) float64 {
	lo, ok := span(len(ticks), i, w)
	if !ok {
		return 0
	}
	return extreme(ticks, f, lo, i, false)
}

// HighestFrom returns the maximum of f over [ref, i]
func HighestFrom(ticks []types.TickRecord, f types.Field, ref, i int) float64 {
	if !fromSpan(len(ticks), ref, i) {
		return 0
	}
	return extreme(ticks, f, ref, i, true)
}

// LowestFrom returns the minimum of f over [ref, i]
func LowestFrom(ticks []types.TickRecord, f types.Field, ref, i int) float64 {
	if !fromSpan(len(ticks), ref, i) {
		return 0
	}
	return extreme(ticks, f, ref, i, false)
}

// Angle returns the slope of f across w ticks in degrees:
// atan2((v[i] - v[i-w]) * sensitivity, w).
func Angle(ticks []types.TickRecord, f types.Field, i, w int, sensitivity float64) float64 {
	if w <= 0 || i-w < 0 || i >= len(ticks) {
		return 0
	}
	delta := ticks[i].Value(f) - ticks[i-w].Value(f)
	return degrees(delta*sensitivity, float64(w))
}

// AngleOf is Angle over a precomputed column such as a moving average.
// A zero at i-w means the column was still warming up and yields 0.
func AngleOf(values []float64, i, w int, sensitivity float64) float64 {
	if w <= 0 || i-w < 0 || i >= len(values) || values[i-w] == 0 {
		return 0
	}
	return degrees((values[i]-values[i-w])*sensitivity, float64(w))
}

// SeriesMean reads the joined average column for w when present and falls
// back to computing Mean over last price.
func SeriesMean(s *types.TickSeries, i, w int) float64 {
	if col, ok := s.Average(w); ok {
		if i < 0 || i >= len(col) {
			return 0
		}
		return col[i]
	}
	return Mean(s.Ticks, types.FieldLastPrice, i, w)
}

// SeriesAngle is the slope of the w-tick moving average across n ticks.
// Warm-up positions of the average yield 0.
func SeriesAngle(s *types.TickSeries, i, w, n int, sensitivity float64) float64 {
	if col, ok := s.Average(w); ok {
		return AngleOf(col, i, n, sensitivity)
	}
	if n <= 0 || i-n < 0 || i >= s.Len() {
		return 0
	}
	prev := Mean(s.Ticks, types.FieldLastPrice, i-n, w)
	if prev == 0 {
		return 0
	}
	return degrees((Mean(s.Ticks, types.FieldLastPrice, i, w)-prev)*sensitivity, float64(n))
}

func sum(ticks []types.TickRecord, f types.Field, lo, hi int) float64 {
	total := 0.0
	for j := lo; j <= hi; j++ {
		total += ticks[j].Value(f)
	}
	return total
}

func extreme(ticks []types.TickRecord, f types.Field, lo, hi int, highest bool) float64 {
	best := ticks[lo].Value(f)
	for j := lo + 1; j <= hi; j++ {
		v := ticks[j].Value(f)
		if (highest && v > best) || (!highest && v < best) {
			best = v
		}
	}
	return best
}

func degrees(y, x float64) float64 {
	return math.Atan2(y, x) * 180 / math.Pi
}
