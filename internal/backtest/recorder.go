package backtest

import "sort"

// AssembleTrades concatenates per-instrument trade logs in the given order,
// stable-sorts them by entry timestamp and fills CumulativeProfit.
func AssembleTrades(logs ...[]TradeRecord) []TradeRecord {
	n := 0
	for _, l := range logs {
		n += len(l)
	}
	trades := make([]TradeRecord, 0, n)
	for _, l := range logs {
		trades = append(trades, l...)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EntryTimestamp < trades[j].EntryTimestamp
	})

	cum := 0.0
	for i := range trades {
		cum += trades[i].ProfitAmount
		trades[i].CumulativeProfit = cum
	}
	return trades
}

type exposureEvent struct {
	part   int
	sample ExposureSample
}

// MergeExposure combines per-instrument samples into run-wide rows. Each
// instrument contributes its latest sample as of every timestamp; rows with
// no open position are dropped.
func MergeExposure(parts ...[]ExposureSample) []ExposureSample {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	events := make([]exposureEvent, 0, n)
	for i, p := range parts {
		for _, s := range p {
			events = append(events, exposureEvent{part: i, sample: s})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].sample.Timestamp < events[j].sample.Timestamp
	})

	latest := make([]ExposureSample, len(parts))
	var out []ExposureSample
	count, amount := 0, 0.0
	for k := 0; k < len(events); {
		ts := events[k].sample.Timestamp
		for ; k < len(events) && events[k].sample.Timestamp == ts; k++ {
			ev := events[k]
			prev := latest[ev.part]
			count += ev.sample.OpenPositionCount - prev.OpenPositionCount
			amount += ev.sample.ExposureAmount - prev.ExposureAmount
			latest[ev.part] = ev.sample
		}
		if count <= 0 {
			amount = 0
			continue
		}
		out = append(out, ExposureSample{Timestamp: ts, OpenPositionCount: count, ExposureAmount: amount})
	}
	return out
}
