package strategy

import (
	"fmt"

	"github.com/ducminhle1904/tick-backtester/internal/indicators"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// Env is the binding surface a rule sees. Fields are the current tick and
// position; methods are the indicator accessors and the Buy/Sell/Tag actions.
type Env struct {
	Price    float64 `expr:"price"`
	Open     float64 `expr:"open"`
	High     float64 `expr:"high"`
	Low      float64 `expr:"low"`
	Pct      float64 `expr:"pct"`
	Value    float64 `expr:"value"`
	Strength float64 `expr:"strength"`
	Ask1     float64 `expr:"ask1"`
	Bid1     float64 `expr:"bid1"`
	AskQty1  float64 `expr:"askqty1"`
	BidQty1  float64 `expr:"bidqty1"`
	AskTotal float64 `expr:"asktotal"`
	BidTotal float64 `expr:"bidtotal"`
	Halted   bool    `expr:"halted"`

	Timestamp int64 `expr:"ts"`
	Date      int64 `expr:"date"`
	Time      int   `expr:"time"`
	Index     int   `expr:"index"`

	Holding     bool    `expr:"holding"`
	EntryPrice  float64 `expr:"entry_price"`
	Quantity    float64 `expr:"quantity"`
	Return      float64 `expr:"ret"`
	BestReturn  float64 `expr:"best_ret"`
	WorstReturn float64 `expr:"worst_ret"`
	HoldSeconds int64   `expr:"hold_sec"`
	HoldTicks   int     `expr:"hold_ticks"`
	SplitCount  int     `expr:"split_count"`

	state *evalState
}

// evalState is shared by every Env copy built for one tick
type evalState struct {
	series      *types.TickSeries
	index       int
	entryIndex  int
	holding     bool
	sensitivity float64
	params      map[string]float64
	decision    Decision
}

// Buy requests an entry, or an add-buy while holding
func (e Env) Buy() bool {
	if e.state.decision.Action == ActionHold {
		e.state.decision.Action = ActionBuy
	}
	return true
}

// Sell requests an exit with the given reason code. It is a no-op while
// flat, whatever the code; while holding the session-end code is rejected.
func (e Env) Sell(code int) bool {
	if !e.state.holding {
		return false
	}
	if code == SessionEndCode {
		panic(fmt.Errorf("exit code %d is reserved for session-end liquidation", SessionEndCode))
	}
	e.state.decision.Action = ActionSell
	e.state.decision.ExitCode = code
	return true
}

// Tag labels the entry signal recorded with the trade
func (e Env) Tag(name string) bool {
	e.state.decision.Tag = name
	return true
}

// Param returns a named run parameter
func (e Env) Param(name string) float64 {
	v, ok := e.state.params[name]
	if !ok {
		panic(fmt.Errorf("parameter %q is not set", name))
	}
	return v
}

// MA is the moving average of last price over w ticks
func (e Env) MA(w int) float64 {
	return indicators.SeriesMean(e.state.series, e.state.index, w)
}

// MAAngle is the slope in degrees of the w-tick moving average across n ticks
func (e Env) MAAngle(w, n int) float64 {
	return indicators.SeriesAngle(e.state.series, e.state.index, w, n, e.state.sensitivity)
}

// Avg is the mean of a column over the last w ticks
func (e Env) Avg(field string, w int) float64 {
	return indicators.Mean(e.state.series.Ticks, column(field), e.state.index, w)
}

// Highest is the maximum of a column over the last w ticks
func (e Env) Highest(field string, w int) float64 {
	return indicators.Highest(e.state.series.Ticks, column(field), e.state.index, w)
}

// Lowest is the minimum of a column over the last w ticks
func (e Env) Lowest(field string, w int) float64 {
	return indicators.Lowest(e.state.series.Ticks, column(field), e.state.index, w)
}

// Lag is a column n ticks back
func (e Env) Lag(field string, n int) float64 {
	return indicators.Lag(e.state.series.Ticks, column(field), e.state.index, n)
}

// Angle is the slope in degrees of a column across w ticks
func (e Env) Angle(field string, w int) float64 {
	return indicators.Angle(e.state.series.Ticks, column(field), e.state.index, w, e.state.sensitivity)
}

// AvgSinceEntry is the mean of a column from the entry tick to now
func (e Env) AvgSinceEntry(field string) float64 {
	if !e.state.holding {
		return 0
	}
	return indicators.MeanFrom(e.state.series.Ticks, column(field), e.state.entryIndex, e.state.index)
}

// HighSinceEntry is the maximum of a column from the entry tick to now
func (e Env) HighSinceEntry(field string) float64 {
	if !e.state.holding {
		return 0
	}
	return indicators.HighestFrom(e.state.series.Ticks, column(field), e.state.entryIndex, e.state.index)
}

// LowSinceEntry is the minimum of a column from the entry tick to now
func (e Env) LowSinceEntry(field string) float64 {
	if !e.state.holding {
		return 0
	}
	return indicators.LowestFrom(e.state.series.Ticks, column(field), e.state.entryIndex, e.state.index)
}

func column(name string) types.Field {
	f, ok := types.ParseField(name)
	if !ok {
		panic(fmt.Errorf("unknown column %q", name))
	}
	return f
}
