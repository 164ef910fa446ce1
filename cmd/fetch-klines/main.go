package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ducminhle1904/tick-backtester/internal/exchange/bybit"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/pkg/data"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// fetch-klines downloads Bybit klines into per-symbol CSV files the backtest
// csv source reads (asset_class crypto).
func main() {
	var (
		symbols   = flag.String("symbols", "BTCUSDT", "Comma-separated list of symbols")
		interval  = flag.String("interval", "1m", "Kline interval (1m, 5m, 1h, 1d or a minute count)")
		category  = flag.String("category", "spot", "Market category (spot, linear, inverse)")
		outdir    = flag.String("outdir", "data/crypto", "Directory to write CSV files")
		startDate = flag.String("start", "", "Start date (YYYY-MM-DD), default one year before end")
		endDate   = flag.String("end", "", "End date (YYYY-MM-DD), default now")
		demo      = flag.Bool("demo", false, "Use the demo environment")
		logLevel  = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	log, err := logger.New(logger.Options{Label: "fetch-klines", Level: *logLevel})
	if err != nil {
		fatal(err)
	}
	defer log.Close()

	iv, err := bybit.ParseInterval(*interval)
	if err != nil {
		fatal(err)
	}
	start, end, err := dateRange(*startDate, *endDate, time.Now().UTC())
	if err != nil {
		fatal(err)
	}
	if err := os.MkdirAll(*outdir, 0755); err != nil {
		fatal(fmt.Errorf("failed to create output directory: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := bybit.NewClient(bybit.Config{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Demo:      *demo,
	})
	provider := bybit.NewKlineProvider(client, strings.ToLower(*category), iv, start, end)
	log.Infow("downloading klines", "provider", provider.Name(), "environment", client.Environment(),
		"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

	failed := 0
	for _, sym := range splitSymbols(*symbols) {
		if ctx.Err() != nil {
			break
		}
		series, err := provider.LoadSeries(ctx, sym)
		if err != nil {
			failed++
			log.Errorw("download failed", "symbol", sym, "error", err)
			continue
		}
		path := filepath.Join(*outdir, sym+".csv")
		if err := saveSeries(series, path); err != nil {
			failed++
			log.Errorw("save failed", "symbol", sym, "path", path, "error", err)
			continue
		}
		first, last := bounds(series)
		log.Infow("saved", "symbol", sym, "ticks", series.Len(), "first", first, "last", last, "path", path)
	}

	if failed > 0 {
		fatal(fmt.Errorf("%d symbol(s) failed", failed))
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fetch-klines:", err)
	os.Exit(1)
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// dateRange resolves the flags; an empty start is one year before end
func dateRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	end := now
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		end = t
	}
	start := end.AddDate(-1, 0, 0)
	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

func saveSeries(series *types.TickSeries, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := data.WriteSeriesCSV(f, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func bounds(series *types.TickSeries) (int64, int64) {
	if series.Len() == 0 {
		return 0, 0
	}
	return series.Ticks[0].Timestamp, series.Ticks[series.Len()-1].Timestamp
}
