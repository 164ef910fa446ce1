package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	"github.com/ducminhle1904/tick-backtester/internal/config"
	"github.com/ducminhle1904/tick-backtester/internal/exchange/bybit"
	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/internal/monitoring"
	"github.com/ducminhle1904/tick-backtester/internal/storage"
	"github.com/ducminhle1904/tick-backtester/internal/storage/clickhouse"
	"github.com/ducminhle1904/tick-backtester/internal/storage/postgres"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/data"
	"github.com/ducminhle1904/tick-backtester/pkg/reporting"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("backtest: %v", err)
	}
}

// app carries what one invocation opened, so it can be closed in one place
type app struct {
	cfg     *config.AppConfig
	log     *logger.Logger
	health  *monitoring.HealthChecker
	results *postgres.ResultStore
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(args []string) error {
	flags, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if flags.Version {
		printVersion(os.Stdout)
		return nil
	}

	if err := config.LoadEnvFile(flags.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runLog, err := logger.New(logger.Options{Label: cfg.Run.Label, Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, log: runLog, health: monitoring.NewHealthChecker()}
	a.closers = append(a.closers, func() { runLog.Close() })
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}

	buyRule, sellRule, err := readRules(cfg.BuyRuleFile, cfg.SellRuleFile)
	if err != nil {
		return err
	}

	series, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}
	if flags.Ingest {
		if err := a.ingest(ctx, series); err != nil {
			return err
		}
	}

	calc, err := a.feeCalculator()
	if err != nil {
		return err
	}

	manager := reporting.NewReportingManager(reporting.ReportingConfig{
		Formats:       lowerAll(cfg.OutputFormats),
		OutputRoot:    cfg.OutputDir,
		TradeRowLimit: 50,
	}, os.Stdout)

	if flags.Grid != "" {
		return a.optimize(ctx, flags, buyRule, sellRule, series, calc, manager)
	}

	runner := backtest.NewRunner(&cfg.Run, calc, backtest.WithLogger(runLog), backtest.WithHealth(a.health))
	result := runner.Run(ctx, buyRule, sellRule, series)

	written, err := manager.ReportResults(result)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	for _, p := range written {
		runLog.Infow("report written", "path", p)
	}

	if err := a.persist(ctx, result); err != nil {
		return err
	}

	switch result.Status {
	case backtest.StatusRuleCompileFailure, backtest.StatusAborted:
		return result.Err
	}
	return nil
}

func (a *app) optimize(ctx context.Context, flags *Flags, buyRule, sellRule string, series []*types.TickSeries, calc fees.Calculator, manager *reporting.ReportingManager) error {
	grid, err := parseGrid(flags.Grid)
	if err != nil {
		return err
	}
	objective, err := objectiveByName(flags.Objective)
	if err != nil {
		return err
	}
	rules, err := strategy.Compile(buyRule, sellRule)
	if err != nil {
		return err
	}

	a.log.Infow("optimization started", "axes", gridAxes(grid), "combinations", len(grid.Combinations()))
	opt := backtest.NewOptimizer(&a.cfg.Run, rules, calc, objective, a.log)
	trials, runErr := opt.Run(ctx, grid, series)

	written, err := manager.ReportTrials(a.cfg.Run.Label, trials)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	for _, p := range written {
		a.log.Infow("report written", "path", p)
	}

	if best, ok := backtest.Best(trials); ok {
		a.log.Infow("best trial", "turn", best.Turn, "params", best.Params, "score", best.Score)
		if _, err := manager.ReportResults(best.Result); err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
	} else {
		a.log.Warning("no trial produced trades")
	}

	for _, t := range trials {
		if err := a.persist(ctx, t.Result); err != nil {
			return err
		}
	}
	return runErr
}

func readRules(buyPath, sellPath string) (string, string, error) {
	if buyPath == "" || sellPath == "" {
		return "", "", fmt.Errorf("both buy and sell rule files are required")
	}
	buy, err := os.ReadFile(buyPath)
	if err != nil {
		return "", "", fmt.Errorf("read buy rule: %w", err)
	}
	sell, err := os.ReadFile(sellPath)
	if err != nil {
		return "", "", fmt.Errorf("read sell rule: %w", err)
	}
	return string(buy), string(sell), nil
}

func (a *app) feeCalculator() (fees.Calculator, error) {
	if a.cfg.Run.FeeSchedule != "" {
		return fees.ByName(a.cfg.Run.FeeSchedule)
	}
	return fees.ForAssetClass(a.cfg.Run.Class())
}

// loadSeries opens the configured tick source and loads the requested instruments
func (a *app) loadSeries(ctx context.Context) ([]*types.TickSeries, error) {
	cfg := a.cfg
	codes := cfg.Instruments
	var provider data.TickProvider

	switch cfg.Source {
	case "csv":
		opts := []data.CSVOption{data.WithCSVLogger(a.log)}
		if cfg.Run.Class() == types.AssetCrypto {
			opts = append(opts, data.WithFormat(data.BybitCSVFormat))
		}
		provider = data.NewCachedProvider(data.NewCSVProvider(cfg.DataRoot, cfg.Run.Class(), opts...), a.log)
		if len(codes) == 0 {
			listed, err := data.NewDefaultFileLocator().ListInstruments(cfg.DataRoot)
			if err != nil {
				return nil, fmt.Errorf("list instruments: %w", err)
			}
			codes = listed
		}

	case "clickhouse":
		store, err := a.tickStore(ctx)
		if err != nil {
			return nil, err
		}
		provider = store
		if len(codes) == 0 {
			if codes, err = store.Codes(ctx); err != nil {
				return nil, err
			}
		}

	case "bybit":
		interval, err := bybit.ParseInterval(cfg.Bybit.Interval)
		if err != nil {
			return nil, err
		}
		start, err := parseDate(cfg.Bybit.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(cfg.Bybit.End)
		if err != nil {
			return nil, err
		}
		client := bybit.NewClient(bybit.Config{
			APIKey:    os.Getenv("BYBIT_API_KEY"),
			APISecret: os.Getenv("BYBIT_API_SECRET"),
			Demo:      cfg.Bybit.Demo,
		})
		provider = bybit.NewKlineProvider(client, cfg.Bybit.Category, interval, start, end)
		if len(codes) == 0 {
			return nil, fmt.Errorf("the bybit source needs explicit instruments")
		}
	}

	a.log.Infow("loading series", "provider", provider.Name(), "instruments", len(codes))
	manager := data.NewDataManager(provider, a.log)
	series, err := manager.LoadAll(ctx, codes, data.LoadOptions{
		SessionStart:     cfg.SessionStart,
		SessionEnd:       cfg.SessionEnd,
		AveragingWindows: cfg.Run.AveragingWindows,
		DropDuplicates:   cfg.DropDuplicates,
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (a *app) tickStore(ctx context.Context) (*clickhouse.TickStore, error) {
	conn, err := clickhouse.NewConn(ctx, a.cfg.ClickHouseDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { conn.Close() })
	if err := conn.Migrate(ctx); err != nil {
		return nil, err
	}
	return clickhouse.NewTickStore(conn), nil
}

// ingest copies series into ClickHouse, skipping codes already stored
func (a *app) ingest(ctx context.Context, series []*types.TickSeries) error {
	if a.cfg.ClickHouseDSN == "" {
		return fmt.Errorf("-ingest needs clickhouse_dsn")
	}
	store, err := a.tickStore(ctx)
	if err != nil {
		return err
	}
	for _, s := range series {
		err := store.InsertSeries(ctx, s)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			a.log.Warnw("series already stored", "code", s.Code)
		case err != nil:
			return err
		default:
			a.log.Infow("series ingested", "code", s.Code, "ticks", s.Len())
		}
	}
	return nil
}

// persist saves result to PostgreSQL when a DSN is configured
func (a *app) persist(ctx context.Context, result *backtest.RunResult) error {
	if a.cfg.PostgresDSN == "" || result == nil {
		return nil
	}
	if a.results == nil {
		store, err := a.resultStore(ctx)
		if err != nil {
			return err
		}
		a.results = store
	}
	if err := a.results.SaveRun(ctx, result); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			a.log.Warnw("run already stored", "run_id", result.RunID)
			return nil
		}
		return err
	}
	a.log.Infow("run stored", "run_id", result.RunID, "trades", len(result.Trades))
	return nil
}

func (a *app) resultStore(ctx context.Context) (*postgres.ResultStore, error) {
	pool, err := postgres.NewPool(ctx, a.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	if err := pool.Migrate(ctx); err != nil {
		return nil, err
	}
	return postgres.NewResultStore(pool), nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", a.health)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	a.log.Infow("metrics server listening", "addr", addr)
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
}

// parseDate accepts YYYY-MM-DD or YYYYMMDD; empty is the zero time
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
