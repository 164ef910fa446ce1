package data

import (
	"context"
	"fmt"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// LoadOptions narrows and prepares loaded series
type LoadOptions struct {
	StartDate        int64 // YYYYMMDD, 0 = open
	EndDate          int64 // YYYYMMDD, 0 = open
	SessionStart     int   // HHMMSS, 0 = open
	SessionEnd       int   // HHMMSS, 0 = open
	AveragingWindows []int
	SortUnordered    bool // sort instead of rejecting out-of-order ticks
	DropDuplicates   bool // drop rows repeating the previous timestamp and price
}

// DataManager combines a provider with filtering and validation
type DataManager struct {
	provider TickProvider
	filter   *DefaultSeriesFilter
	log      *logger.Logger
}

// NewDataManager creates a data manager around provider
func NewDataManager(provider TickProvider, log *logger.Logger) *DataManager {
	if log == nil {
		log = logger.Nop()
	}
	return &DataManager{
		provider: provider,
		filter:   NewDefaultSeriesFilter(),
		log:      log,
	}
}

// Provider returns the underlying tick provider
func (dm *DataManager) Provider() TickProvider {
	return dm.provider
}

// Load fetches one instrument and prepares it for replay: date and session
// filtering, time-order validation, optional de-duplication and the
// moving-average columns the rules read.
func (dm *DataManager) Load(ctx context.Context, code string, opts LoadOptions) (*types.TickSeries, error) {
	series, err := dm.provider.LoadSeries(ctx, code)
	if err != nil {
		return nil, err
	}

	ticks := dm.filter.FilterByDateRange(series.Ticks, opts.StartDate, opts.EndDate)
	ticks = dm.filter.FilterByTimeOfDay(ticks, opts.SessionStart, opts.SessionEnd)
	if err := dm.filter.ValidateTimeSequence(ticks); err != nil {
		if !opts.SortUnordered {
			return nil, bterrors.NewDataError("data_manager", "validate", fmt.Errorf("%s: %w", code, err))
		}
		dm.log.Warnw("sorting out-of-order ticks", "code", code)
		ticks = dm.filter.SortByTimestamp(ticks)
	}
	if opts.DropDuplicates {
		before := len(ticks)
		ticks = dm.filter.RemoveDuplicates(ticks)
		if dropped := before - len(ticks); dropped > 0 {
			dm.log.Infow("duplicate ticks dropped", "code", code, "dropped", dropped)
		}
	}

	// a fresh series so cached ones are never mutated
	prepared := types.NewTickSeries(series.Code, series.Name, series.Class, ticks)
	prepared.PrecomputeAverages(opts.AveragingWindows)
	return prepared, nil
}

// LoadAll loads every code in order. Instruments that fail to load are logged
// and skipped; the error is returned only when nothing loads.
func (dm *DataManager) LoadAll(ctx context.Context, codes []string, opts LoadOptions) ([]*types.TickSeries, error) {
	out := make([]*types.TickSeries, 0, len(codes))
	var firstErr error
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		series, err := dm.Load(ctx, code, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			dm.log.Warnw("instrument not loaded", "provider", dm.provider.Name(), "code", code, "error", err)
			continue
		}
		out = append(out, series)
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
