package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/storage"
)

// ResultStore persists backtest runs with their trade tables and metrics.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// RunSummary is a stored run without its trade table.
type RunSummary struct {
	RunID       string
	Label       string
	Turn        int
	Status      backtest.RunStatus
	Error       string
	Params      map[string]float64
	DayCount    int
	Diagnostics backtest.Diagnostics
	StartedAt   time.Time
	Duration    time.Duration
	Metrics     *backtest.MetricsResult // nil when the run produced no metrics row
}

var tradeColumns = []string{
	"run_id", "seq", "label", "instrument_name", "signal_tag",
	"entry_timestamp", "exit_timestamp", "holding_time_sec",
	"entry_price", "exit_price", "quantity", "entry_amount", "exit_amount",
	"fee_amount", "profit_amount", "return_pct", "sell_reason_code", "add_buy_log",
	"is_valid", "turn", "slot", "cumulative_profit",
}

// SaveRun stores the run row, its trades and its metrics in one transaction.
// Returns ErrDuplicateKey if the run id exists.
func (s *ResultStore) SaveRun(ctx context.Context, r *backtest.RunResult) error {
	if err := s.saveRun(ctx, r); err != nil {
		if err == storage.ErrDuplicateKey {
			return err
		}
		return bterrors.NewStorageError("postgres_result_store", "save_run", err).
			WithContext("run_id", r.RunID)
	}
	return nil
}

func (s *ResultStore) saveRun(ctx context.Context, r *backtest.RunResult) error {
	id, err := uuid.Parse(r.RunID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}
	params, err := json.Marshal(nonNilParams(r.Params))
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	diagnostics, err := json.Marshal(r.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, label, turn, status, error, params, day_count, diagnostics, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		id, r.Label, r.Turn, string(r.Status), r.Error, params, r.DayCount, diagnostics,
		r.StartedAt, r.Duration.Milliseconds(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Trades) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"backtest_trades"}, tradeColumns,
			pgx.CopyFromSlice(len(r.Trades), func(i int) ([]any, error) {
				t := r.Trades[i]
				return []any{
					id, i, t.Label, t.InstrumentName, t.SignalTag,
					t.EntryTimestamp, t.ExitTimestamp, t.HoldingTimeSec,
					t.EntryPrice, t.ExitPrice, t.Quantity, t.EntryAmount, t.ExitAmount,
					t.FeeAmount, t.ProfitAmount, t.ReturnPct, t.SellReasonCode, t.AddBuyLog,
					t.IsValid, t.Turn, t.Slot, t.CumulativeProfit,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy trades: %w", err)
		}
	}

	if r.Status == backtest.StatusSuccess || r.Status == backtest.StatusNoTrades {
		m := r.Metrics
		_, err = tx.Exec(ctx, `
			INSERT INTO backtest_metrics (
				run_id, trade_count, avg_daily_trade_count, profit_trade_count, loss_trade_count,
				win_rate_pct, avg_holding_time_sec, avg_return_pct, total_return_pct, total_profit_amount,
				max_exposure_count, required_capital, cagr_proxy, trading_performance_index,
				max_drawdown_pct, max_drawdown_amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			id, m.TradeCount, m.AvgDailyTradeCount, m.ProfitTradeCount, m.LossTradeCount,
			m.WinRatePct, m.AvgHoldingTimeSec, m.AvgReturnPct, m.TotalReturnPct, m.TotalProfitAmount,
			m.MaxExposureCount, m.RequiredCapital, m.CAGRProxy, m.TradingPerformanceIndex,
			m.MaxDrawdownPct, m.MaxDrawdownAmount,
		)
		if err != nil {
			return fmt.Errorf("insert metrics: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves a run with its metrics. Returns ErrNotFound if not exists.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT
			r.run_id::text, r.label, r.turn, r.status, r.error, r.params, r.day_count, r.diagnostics,
			r.started_at, r.duration_ms,
			m.trade_count, m.avg_daily_trade_count, m.profit_trade_count, m.loss_trade_count,
			m.win_rate_pct, m.avg_holding_time_sec, m.avg_return_pct, m.total_return_pct,
			m.total_profit_amount, m.max_exposure_count, m.required_capital, m.cagr_proxy,
			m.trading_performance_index, m.max_drawdown_pct, m.max_drawdown_amount
		FROM backtest_runs r
		LEFT JOIN backtest_metrics m ON m.run_id = r.run_id
		WHERE r.run_id = $1
	`, id)

	var (
		sum                      RunSummary
		status                   string
		params, diagnostics      []byte
		durationMs               int64
		tradeCount, profitCount  *int
		lossCount, maxExposure   *int
		avgDaily, winRate        *float64
		avgHold, avgReturn       *float64
		totalReturn, totalProfit *float64
		required, cagr, tpi      *float64
		mddPct, mddAmount        *float64
	)
	err = row.Scan(
		&sum.RunID, &sum.Label, &sum.Turn, &status, &sum.Error, &params, &sum.DayCount, &diagnostics,
		&sum.StartedAt, &durationMs,
		&tradeCount, &avgDaily, &profitCount, &lossCount,
		&winRate, &avgHold, &avgReturn, &totalReturn,
		&totalProfit, &maxExposure, &required, &cagr,
		&tpi, &mddPct, &mddAmount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}

	sum.Status = backtest.RunStatus(status)
	sum.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal(params, &sum.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal(diagnostics, &sum.Diagnostics); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}

	if tradeCount != nil {
		sum.Metrics = &backtest.MetricsResult{
			TradeCount:              *tradeCount,
			AvgDailyTradeCount:      *avgDaily,
			ProfitTradeCount:        *profitCount,
			LossTradeCount:          *lossCount,
			WinRatePct:              *winRate,
			AvgHoldingTimeSec:       *avgHold,
			AvgReturnPct:            *avgReturn,
			TotalReturnPct:          *totalReturn,
			TotalProfitAmount:       *totalProfit,
			MaxExposureCount:        *maxExposure,
			RequiredCapital:         *required,
			CAGRProxy:               *cagr,
			TradingPerformanceIndex: *tpi,
			MaxDrawdownPct:          *mddPct,
			MaxDrawdownAmount:       *mddAmount,
		}
	}
	return &sum, nil
}

// GetTrades retrieves the trade table of a run in assembled order.
func (s *ResultStore) GetTrades(ctx context.Context, runID string) ([]backtest.TradeRecord, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT
			label, instrument_name, signal_tag,
			entry_timestamp, exit_timestamp, holding_time_sec,
			entry_price, exit_price, quantity, entry_amount, exit_amount,
			fee_amount, profit_amount, return_pct, sell_reason_code, add_buy_log,
			is_valid, turn, slot, cumulative_profit
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	var trades []backtest.TradeRecord
	for rows.Next() {
		var t backtest.TradeRecord
		err := rows.Scan(
			&t.Label, &t.InstrumentName, &t.SignalTag,
			&t.EntryTimestamp, &t.ExitTimestamp, &t.HoldingTimeSec,
			&t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.EntryAmount, &t.ExitAmount,
			&t.FeeAmount, &t.ProfitAmount, &t.ReturnPct, &t.SellReasonCode, &t.AddBuyLog,
			&t.IsValid, &t.Turn, &t.Slot, &t.CumulativeProfit,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// ListRuns returns run ids for a label, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, label string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text FROM backtest_runs
		WHERE label = $1
		ORDER BY started_at DESC, turn ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect run ids: %w", err)
	}
	return ids, nil
}

func nonNilParams(p map[string]float64) map[string]float64 {
	if p == nil {
		return map[string]float64{}
	}
	return p
}
