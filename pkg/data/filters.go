package data

import (
	"fmt"
	"sort"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// DefaultSeriesFilter implements SeriesFilter for common filtering operations
type DefaultSeriesFilter struct{}

// NewDefaultSeriesFilter creates a new default series filter
func NewDefaultSeriesFilter() *DefaultSeriesFilter {
	return &DefaultSeriesFilter{}
}

// FilterByDateRange keeps ticks dated within [startDate, endDate]; 0 leaves a bound open
func (f *DefaultSeriesFilter) FilterByDateRange(ticks []types.TickRecord, startDate, endDate int64) []types.TickRecord {
	if len(ticks) == 0 || (startDate == 0 && endDate == 0) {
		return ticks
	}

	filtered := make([]types.TickRecord, 0, len(ticks))
	for _, t := range ticks {
		d := types.DateOf(t.Timestamp)
		if startDate != 0 && d < startDate {
			continue
		}
		if endDate != 0 && d > endDate {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// FilterByTimeOfDay keeps intraday ticks within [start, end]; daily ticks always pass
func (f *DefaultSeriesFilter) FilterByTimeOfDay(ticks []types.TickRecord, start, end int) []types.TickRecord {
	if len(ticks) == 0 || (start == 0 && end == 0) {
		return ticks
	}

	filtered := make([]types.TickRecord, 0, len(ticks))
	for _, t := range ticks {
		tod := types.TimeOfDay(t.Timestamp)
		if tod >= 0 {
			if start != 0 && tod < start {
				continue
			}
			if end != 0 && tod > end {
				continue
			}
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// ValidateTimeSequence ensures ticks are in non-decreasing timestamp order
func (f *DefaultSeriesFilter) ValidateTimeSequence(ticks []types.TickRecord) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp < ticks[i-1].Timestamp {
			return fmt.Errorf("ticks not in chronological order at index %d: %d comes after %d",
				i, ticks[i].Timestamp, ticks[i-1].Timestamp)
		}
	}
	return nil
}

// SortByTimestamp returns a stably sorted copy of ticks
func (f *DefaultSeriesFilter) SortByTimestamp(ticks []types.TickRecord) []types.TickRecord {
	if len(ticks) <= 1 {
		return ticks
	}

	sorted := make([]types.TickRecord, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

// RemoveDuplicates drops rows whose timestamp and price repeat the previous row
func (f *DefaultSeriesFilter) RemoveDuplicates(ticks []types.TickRecord) []types.TickRecord {
	if len(ticks) <= 1 {
		return ticks
	}

	filtered := make([]types.TickRecord, 0, len(ticks))
	filtered = append(filtered, ticks[0])
	for i := 1; i < len(ticks); i++ {
		prev := filtered[len(filtered)-1]
		if ticks[i].Timestamp == prev.Timestamp && ticks[i].LastPrice == prev.LastPrice {
			continue
		}
		filtered = append(filtered, ticks[i])
	}
	return filtered
}
