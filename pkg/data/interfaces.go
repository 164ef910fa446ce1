package data

import (
	"context"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// TickProvider loads the tick series of one instrument from some source
type TickProvider interface {
	// LoadSeries loads the full, time-ordered series for an instrument code
	LoadSeries(ctx context.Context, code string) (*types.TickSeries, error)

	// Name returns the name of the data provider
	Name() string
}

// SeriesCache caches loaded series by key
type SeriesCache interface {
	// Get retrieves a series from cache if available
	Get(key string) (*types.TickSeries, bool)

	// Set stores a series in cache
	Set(key string, series *types.TickSeries)

	// Clear removes all cached series
	Clear()

	// Size returns the number of cached entries
	Size() int
}

// SeriesFilter narrows or checks a slice of ticks
type SeriesFilter interface {
	// FilterByDateRange keeps ticks whose date lies in [startDate, endDate] (YYYYMMDD, 0 = open)
	FilterByDateRange(ticks []types.TickRecord, startDate, endDate int64) []types.TickRecord

	// FilterByTimeOfDay keeps intraday ticks whose time of day lies in [start, end] (hhmmss, 0 = open)
	FilterByTimeOfDay(ticks []types.TickRecord, start, end int) []types.TickRecord

	// ValidateTimeSequence ensures ticks are in non-decreasing timestamp order
	ValidateTimeSequence(ticks []types.TickRecord) error
}

// CSVColumnMapping describes how a tick CSV header maps onto TickRecord fields.
// Numeric columns are matched by types.ParseField names after Aliases are applied.
type CSVColumnMapping struct {
	TimestampCol string
	NameCol      string
	HaltedCol    string
	RoundLotCol  string
	Aliases      map[string]string
	DateFormat   string // layout tried when the timestamp is not an integer stamp
	Comma        rune
}

// Predefined CSV formats
var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: "timestamp",
		NameCol:      "name",
		HaltedCol:    "halted",
		RoundLotCol:  "round_lot",
		Aliases: map[string]string{
			"last":  "price",
			"close": "price",
			"ts":    "timestamp",
		},
		DateFormat: "2006-01-02 15:04:05",
		Comma:      ',',
	}

	BybitCSVFormat = CSVColumnMapping{
		TimestampCol: "timestamp",
		Aliases: map[string]string{
			"close":    "price",
			"turnover": "value",
			"time":     "timestamp",
		},
		DateFormat: "2006-01-02 15:04:05",
		Comma:      ',',
	}
)

// FileLocator resolves the data file of an instrument
type FileLocator interface {
	// FindDataFile returns the path of the instrument file, or "" when none exists
	FindDataFile(dataRoot, code string) string
}
