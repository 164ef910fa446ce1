package backtest

import (
	"errors"
	"time"

	"github.com/ducminhle1904/tick-backtester/internal/config"
	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/internal/monitoring"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// SessionEnd is the exit reason of the day-boundary liquidator
const SessionEnd = strategy.SessionEndCode

// Engine replays instruments one tick at a time. It holds no per-instrument
// state, so Replay may run concurrently for different series.
type Engine struct {
	cfg   *config.RunConfig
	rules *strategy.RuleSet
	fees  fees.Calculator
	log   *logger.Logger
	turn  int
}

// InstrumentResult is the outcome of replaying one series
type InstrumentResult struct {
	Index       int
	Code        string
	Trades      []TradeRecord
	Exposure    []ExposureSample
	Diagnostics Diagnostics
	Skipped     bool
	Duration    time.Duration
}

// NewEngine creates an engine for one run. calc and log may be nil.
func NewEngine(cfg *config.RunConfig, rules *strategy.RuleSet, calc fees.Calculator, log *logger.Logger) *Engine {
	if calc == nil {
		calc = fees.Zero
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, rules: rules, fees: calc, log: log}
}

// IsSessionEnd reports whether tick i is the last of its calendar day
func IsSessionEnd(ticks []types.TickRecord, i int) bool {
	if i >= len(ticks)-1 {
		return true
	}
	return types.DateOf(ticks[i].Timestamp) != types.DateOf(ticks[i+1].Timestamp)
}

// Replay runs the tick loop over one series. slot identifies the worker.
func (e *Engine) Replay(series *types.TickSeries, slot int) InstrumentResult {
	res := InstrumentResult{Diagnostics: newDiagnostics()}
	if series == nil || series.Len() == 0 {
		code := ""
		if series != nil {
			code = series.Code
			res.Code = code
		}
		res.Diagnostics.Errors.RecordError(bterrors.NewEmptyInputError("engine", "no ticks for "+code))
		return res
	}

	start := time.Now()
	res.Code = series.Code
	diag := &res.Diagnostics
	diag.Instruments = 1

	ticks := series.Ticks
	pos := NewPosition(e.cfg.BetAmount, e.fees)
	ev := strategy.NewEvaluator(e.rules, series, e.cfg.Params, e.cfg.AngleSensitivity)
	res.Exposure = make([]ExposureSample, 0, len(ticks))

	for i := range ticks {
		tick := &ticks[i]
		price := tick.LastPrice
		pos.Mark(price)

		if e.cfg.InWindow(tick.Timestamp) {
			decision, err := ev.Evaluate(i, pos.View())
			if err != nil {
				diag.RuleErrors++
				var bErr *bterrors.BacktestError
				if errors.As(err, &bErr) {
					diag.Errors.RecordError(bErr)
				}
			} else {
				switch decision.Action {
				case strategy.ActionBuy:
					if !pos.Holding() {
						if !pos.Open(i, tick.Timestamp, price, decision.Tag) {
							diag.SkippedBuys++
						}
					} else if pos.AddBuy(tick.Timestamp, price, e.cfg.MaxSplitBuy) {
						diag.AddBuys++
					}
				case strategy.ActionSell:
					if pos.Holding() {
						res.Trades = append(res.Trades, e.close(pos, series, tick, decision.ExitCode, slot))
					}
				}
			}
		}

		if pos.Holding() && IsSessionEnd(ticks, i) {
			res.Trades = append(res.Trades, e.close(pos, series, tick, SessionEnd, slot))
			diag.ForcedCloses++
		}

		count, amount := pos.Exposure()
		res.Exposure = append(res.Exposure, ExposureSample{
			Timestamp:         tick.Timestamp,
			OpenPositionCount: count,
			ExposureAmount:    amount,
		})
	}

	diag.Ticks = len(ticks)
	res.Duration = time.Since(start)

	monitoring.RecordTicks(series.Class.String(), diag.Ticks)
	monitoring.RecordSkippedBuys(diag.SkippedBuys)
	for _, c := range diag.Errors.Categories() {
		monitoring.RecordErrors(string(c), diag.Errors.Count(c))
	}

	e.log.Debugw("instrument replayed",
		"code", series.Code,
		"ticks", diag.Ticks,
		"trades", len(res.Trades),
		"rule_errors", diag.RuleErrors,
		"skipped_buys", diag.SkippedBuys,
		"duration", res.Duration,
	)
	return res
}

func (e *Engine) close(pos *Position, series *types.TickSeries, tick *types.TickRecord, reason, slot int) TradeRecord {
	rec := pos.Close(tick.Timestamp, tick.LastPrice, reason)
	rec.Label = series.Code
	rec.InstrumentName = series.Name
	rec.Turn = e.turn
	rec.Slot = slot

	monitoring.RecordTrade(reason)
	e.log.Trade("%s %s closed reason=%d entry=%d@%v exit=%d@%v profit=%.2f",
		rec.Label, rec.SignalTag, reason, rec.EntryTimestamp, rec.EntryPrice,
		rec.ExitTimestamp, rec.ExitPrice, rec.ProfitAmount)
	return rec
}
