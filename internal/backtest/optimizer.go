package backtest

import (
	"context"
	"sort"

	"github.com/ducminhle1904/tick-backtester/internal/config"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// ParamGrid maps a rule parameter to the values to sweep
type ParamGrid map[string][]float64

// Combinations returns the cartesian product in a stable order: parameters
// sorted by name, the last one varying fastest.
func (g ParamGrid) Combinations() []map[string]float64 {
	names := make([]string, 0, len(g))
	for name, values := range g {
		if len(values) == 0 {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		next := make([]map[string]float64, 0, len(combos)*len(g[name]))
		for _, base := range combos {
			for _, v := range g[name] {
				c := make(map[string]float64, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// Objective scores a run; higher is better
type Objective func(MetricsResult) float64

// ByTotalReturn ranks runs by total return percentage
func ByTotalReturn(m MetricsResult) float64 { return m.TotalReturnPct }

// ByPerformanceIndex ranks runs by the trading performance index
func ByPerformanceIndex(m MetricsResult) float64 { return m.TradingPerformanceIndex }

// Trial is one grid point
type Trial struct {
	Turn   int
	Params map[string]float64
	Score  float64
	Result *RunResult
}

// Optimizer sweeps rule parameters over a fixed instrument set with one
// compiled rule set shared by every trial.
type Optimizer struct {
	base      *config.RunConfig
	rules     *strategy.RuleSet
	fees      fees.Calculator
	log       *logger.Logger
	objective Objective
}

// NewOptimizer creates an optimizer. A nil objective ranks by total return.
func NewOptimizer(base *config.RunConfig, rules *strategy.RuleSet, calc fees.Calculator, objective Objective, log *logger.Logger) *Optimizer {
	if objective == nil {
		objective = ByTotalReturn
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Optimizer{base: base, rules: rules, fees: calc, log: log, objective: objective}
}

// Run executes every combination in turn order. Cancellation is checked
// between trials; completed trials are returned with the context error.
func (o *Optimizer) Run(ctx context.Context, grid ParamGrid, series []*types.TickSeries) ([]Trial, error) {
	combos := grid.Combinations()
	trials := make([]Trial, 0, len(combos))
	for turn, params := range combos {
		if err := ctx.Err(); err != nil {
			return trials, err
		}
		cfg := o.base.WithParams(params)
		res := NewRunner(cfg, o.fees, WithTurn(turn), WithLogger(o.log)).RunRules(ctx, o.rules, series)
		trial := Trial{Turn: turn, Params: params, Result: res}
		if res.Status == StatusSuccess {
			trial.Score = o.objective(res.Metrics)
		}
		trials = append(trials, trial)
		o.log.Infow("trial finished", "turn", turn, "params", params, "status", res.Status, "score", trial.Score)
	}
	return trials, nil
}

// Best returns the highest scoring successful trial, earliest turn on ties
func Best(trials []Trial) (Trial, bool) {
	var best Trial
	found := false
	for _, t := range trials {
		if t.Result == nil || t.Result.Status != StatusSuccess {
			continue
		}
		if !found || t.Score > best.Score {
			best = t
			found = true
		}
	}
	return best, found
}
