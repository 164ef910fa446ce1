package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/tick-backtester/internal/config"
	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/internal/monitoring"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// RunStatus tags how a run ended
type RunStatus string

const (
	StatusSuccess            RunStatus = "success"
	StatusNoTrades           RunStatus = "no_trades"
	StatusEmptyInput         RunStatus = "empty_input"
	StatusRuleCompileFailure RunStatus = "rule_compile_failure"
	StatusAborted            RunStatus = "aborted"
)

// RunResult is the complete outcome of one run
type RunResult struct {
	RunID       string             `json:"run_id"`
	Label       string             `json:"label"`
	Turn        int                `json:"turn"`
	Status      RunStatus          `json:"status"`
	Error       string             `json:"error,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
	DayCount    int                `json:"day_count"`
	Metrics     MetricsResult      `json:"metrics"`
	Diagnostics Diagnostics        `json:"diagnostics"`
	Trades      []TradeRecord      `json:"-"`
	Exposure    []ExposureSample   `json:"-"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration_ns"`

	Err error `json:"-"`
}

// Runner is the single-run entry point
type Runner struct {
	cfg    *config.RunConfig
	fees   fees.Calculator
	log    *logger.Logger
	health *monitoring.HealthChecker
	turn   int
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the run logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithHealth reports progress to a health checker
func WithHealth(h *monitoring.HealthChecker) Option {
	return func(r *Runner) { r.health = h }
}

// WithTurn sets the sweep index stamped on every trade
func WithTurn(turn int) Option {
	return func(r *Runner) { r.turn = turn }
}

// NewRunner creates a runner. calc is the fee schedule applied to every close.
func NewRunner(cfg *config.RunConfig, calc fees.Calculator, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, fees: calc, log: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run compiles the rules and replays every series
func (r *Runner) Run(ctx context.Context, buyRule, sellRule string, series []*types.TickSeries) *RunResult {
	rules, err := strategy.Compile(buyRule, sellRule)
	if err != nil {
		res := r.newResult()
		res.Status = StatusRuleCompileFailure
		res.Err = err
		res.Error = err.Error()
		r.log.Errorw("rule compile failed", "run_id", res.RunID, "error", err)
		return r.finish(res)
	}
	return r.RunRules(ctx, rules, series)
}

// RunRules replays every series with already compiled rules
func (r *Runner) RunRules(ctx context.Context, rules *strategy.RuleSet, series []*types.TickSeries) *RunResult {
	res := r.newResult()
	log := r.log.With("run_id", res.RunID, "turn", r.turn)

	if !hasTicks(series) {
		err := bterrors.NewEmptyInputError("runner", "no instrument has ticks")
		res.Status = StatusEmptyInput
		res.Err = err
		res.Error = err.Error()
		res.Diagnostics.Errors.RecordError(err)
		log.Warnw("empty input", "instruments", len(series))
		return r.finish(res)
	}

	log.Infow("run started", "instruments", len(series), "bet", r.cfg.BetAmount, "params", r.cfg.Params)
	if r.health != nil {
		r.health.RunStarted(res.RunID, len(series))
	}

	engine := NewEngine(r.cfg, rules, r.fees, log)
	engine.turn = r.turn
	progress := NewProgressTracker(len(series))

	pool := NewWorkerPool(ctx, r.cfg.WorkerCount(), len(series), engine)
	pool.OnResult(func(ir InstrumentResult) {
		if ir.Skipped {
			return
		}
		progress.Increment()
		if r.health != nil {
			r.health.InstrumentDone()
		}
		done, total, pct, _ := progress.GetProgress()
		log.Debugw("instrument done", "code", ir.Code, "completed", done, "total", total, "progress_pct", pct)
	})
	results := pool.Process(series)

	tradeLogs := make([][]TradeRecord, 0, len(results))
	exposures := make([][]ExposureSample, 0, len(results))
	aborted := false
	for _, ir := range results {
		if ir.Skipped {
			aborted = true
			continue
		}
		res.Diagnostics.Merge(ir.Diagnostics)
		tradeLogs = append(tradeLogs, ir.Trades)
		exposures = append(exposures, ir.Exposure)
	}

	res.Trades = AssembleTrades(tradeLogs...)
	res.Exposure = MergeExposure(exposures...)
	res.DayCount = r.dayCount(series)

	res.Metrics = CalculateMetrics(MetricsInput{
		Trades:       res.Trades,
		Exposure:     res.Exposure,
		BetAmount:    r.cfg.BetAmount,
		AssetClass:   r.cfg.Class(),
		DayCount:     res.DayCount,
		TrimFraction: r.cfg.ExposureTrim,
	}, res.Diagnostics.Errors)

	switch {
	case aborted || ctx.Err() != nil:
		res.Status = StatusAborted
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			res.Error = ctx.Err().Error()
		}
	case len(res.Trades) == 0:
		res.Status = StatusNoTrades
	default:
		res.Status = StatusSuccess
	}

	res = r.finish(res)
	log.Infow("run finished",
		"status", res.Status,
		"trades", res.Metrics.TradeCount,
		"total_profit", res.Metrics.TotalProfitAmount,
		"rule_errors", res.Diagnostics.RuleErrors,
		"duration", res.Duration,
	)
	return res
}

func (r *Runner) newResult() *RunResult {
	return &RunResult{
		RunID:       uuid.NewString(),
		Label:       r.cfg.Label,
		Turn:        r.turn,
		Params:      r.cfg.Params,
		Diagnostics: newDiagnostics(),
		StartedAt:   time.Now(),
	}
}

func (r *Runner) finish(res *RunResult) *RunResult {
	res.Duration = time.Since(res.StartedAt)
	monitoring.RecordRun(string(res.Status), res.Duration)
	if r.health != nil {
		r.health.RunFinished(string(res.Status))
	}
	return res
}

// dayCount uses the configured count or the distinct dates across all series
func (r *Runner) dayCount(series []*types.TickSeries) int {
	if r.cfg.DayCount > 0 {
		return r.cfg.DayCount
	}
	days := make(map[int64]struct{})
	for _, s := range series {
		if s == nil {
			continue
		}
		for _, d := range types.Dates(s.Ticks) {
			days[d] = struct{}{}
		}
	}
	return len(days)
}

func hasTicks(series []*types.TickSeries) bool {
	for _, s := range series {
		if s.Len() > 0 {
			return true
		}
	}
	return false
}
