package strategy

import (
	"fmt"

	"github.com/expr-lang/expr/vm"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// Evaluator runs a shared RuleSet over one instrument's series.
// It is owned by a single replay and not safe for concurrent use.
type Evaluator struct {
	rules   *RuleSet
	state   evalState
	machine vm.VM
}

// NewEvaluator binds rules to a series and run parameters
func NewEvaluator(rules *RuleSet, series *types.TickSeries, params map[string]float64, sensitivity float64) *Evaluator {
	return &Evaluator{
		rules: rules,
		state: evalState{
			series:      series,
			params:      params,
			sensitivity: sensitivity,
		},
	}
}

// Evaluate runs the buy rule while flat and the sell rule while holding.
// Any failure yields a hold decision and a rule evaluation error.
func (ev *Evaluator) Evaluate(i int, pos PositionView) (d Decision, err error) {
	st := &ev.state
	st.index = i
	st.holding = pos.Holding
	st.entryIndex = pos.EntryIndex
	st.decision = Decision{}

	component := "buy-rule"
	program := ev.rules.buy
	if pos.Holding {
		component = "sell-rule"
		program = ev.rules.sell
	}

	defer func() {
		if r := recover(); r != nil {
			d = Decision{}
			err = ruleError(component, i, fmt.Errorf("panic: %v", r))
		}
	}()

	if _, runErr := ev.machine.Run(program, ev.env(i, pos)); runErr != nil {
		return Decision{}, ruleError(component, i, runErr)
	}
	return st.decision, nil
}

func (ev *Evaluator) env(i int, pos PositionView) Env {
	tick := &ev.state.series.Ticks[i]
	env := Env{
		Price:     tick.LastPrice,
		Open:      tick.Open,
		High:      tick.High,
		Low:       tick.Low,
		Pct:       tick.PctChange,
		Value:     tick.ValueTraded,
		Strength:  tick.TradeStrength,
		Ask1:      tick.Book.AskPrice1,
		Bid1:      tick.Book.BidPrice1,
		AskQty1:   tick.Book.AskQty1,
		BidQty1:   tick.Book.BidQty1,
		AskTotal:  tick.Book.AskTotal,
		BidTotal:  tick.Book.BidTotal,
		Halted:    tick.Flags.Halted,
		Timestamp: tick.Timestamp,
		Date:      types.DateOf(tick.Timestamp),
		Time:      types.TimeOfDay(tick.Timestamp),
		Index:     i,
		state:     &ev.state,
	}
	if pos.Holding {
		env.Holding = true
		env.EntryPrice = pos.EntryPrice
		env.Quantity = pos.Quantity
		env.Return = pos.ReturnPct
		env.BestReturn = pos.BestReturnPct
		env.WorstReturn = pos.WorstReturnPct
		env.HoldSeconds = types.SecondsBetween(pos.EntryTimestamp, tick.Timestamp)
		env.HoldTicks = i - pos.EntryIndex
		env.SplitCount = pos.SplitCount
	}
	return env
}

func ruleError(component string, i int, err error) error {
	return bterrors.NewRuleEvaluationError(component, err).WithContext("tick_index", i)
}
