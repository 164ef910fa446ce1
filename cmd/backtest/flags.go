package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	"github.com/ducminhle1904/tick-backtester/internal/config"
)

// Flags holds the command line; set records which flags were given explicitly
type Flags struct {
	EnvFile     string
	ConfigFile  string
	Source      string
	DataRoot    string
	Instruments string
	Session     string
	Dedupe      bool
	BuyRule     string
	SellRule    string
	Label       string
	AssetClass  string
	BetAmount   float64
	Workers     int
	Params      string
	Grid        string
	Objective   string
	Formats     string
	OutputDir   string
	MetricsAddr string
	LogLevel    string
	LogDir      string
	Ingest      bool
	Version     bool

	set map[string]bool
}

func parseFlags(args []string, output io.Writer) (*Flags, error) {
	f := &Flags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&f.EnvFile, "env", ".env", "Environment file path")
	fs.StringVar(&f.ConfigFile, "config", "", "Config file (yaml, json or toml)")
	fs.StringVar(&f.Source, "source", "", "Tick source: csv, clickhouse or bybit")
	fs.StringVar(&f.DataRoot, "data-root", "", "Directory of per-instrument CSV files")
	fs.StringVar(&f.Instruments, "instruments", "", "Comma separated instrument codes (empty = all available)")
	fs.StringVar(&f.Session, "session", "", "Keep ticks within HHMMSS-HHMMSS, e.g. \"090000-153000\"")
	fs.BoolVar(&f.Dedupe, "dedupe", false, "Drop ticks repeating the previous timestamp and price")
	fs.StringVar(&f.BuyRule, "buy-rule", "", "File holding the buy rule")
	fs.StringVar(&f.SellRule, "sell-rule", "", "File holding the sell rule")
	fs.StringVar(&f.Label, "label", "", "Run label")
	fs.StringVar(&f.AssetClass, "asset-class", "", "equity or crypto")
	fs.Float64Var(&f.BetAmount, "bet", 0, "Bet amount per entry")
	fs.IntVar(&f.Workers, "workers", 0, "Instrument workers (0 = one per CPU)")
	fs.StringVar(&f.Params, "params", "", "Rule parameters, e.g. \"threshold=1.5,lookback=20\"")
	fs.StringVar(&f.Grid, "grid", "", "Optimize over a grid, e.g. \"threshold=1,1.5,2;lookback=10,20\"")
	fs.StringVar(&f.Objective, "objective", "return", "Optimizer objective: return or tpi")
	fs.StringVar(&f.Formats, "formats", "", "Comma separated outputs: console, csv, json, excel")
	fs.StringVar(&f.OutputDir, "output-dir", "", "Root directory of the per-run report directories")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")
	fs.StringVar(&f.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.LogDir, "log-dir", "", "Directory for the per-run log file")
	fs.BoolVar(&f.Ingest, "ingest", false, "Copy loaded CSV series into ClickHouse")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with every explicitly given flag
func (f *Flags) apply(cfg *config.AppConfig) error {
	if f.set["source"] {
		cfg.Source = f.Source
	}
	if f.set["data-root"] {
		cfg.DataRoot = f.DataRoot
	}
	if f.set["instruments"] {
		cfg.Instruments = splitList(f.Instruments)
	}
	if f.set["session"] {
		start, end, err := parseSession(f.Session)
		if err != nil {
			return err
		}
		cfg.SessionStart, cfg.SessionEnd = start, end
	}
	if f.set["dedupe"] {
		cfg.DropDuplicates = f.Dedupe
	}
	if f.set["buy-rule"] {
		cfg.BuyRuleFile = f.BuyRule
	}
	if f.set["sell-rule"] {
		cfg.SellRuleFile = f.SellRule
	}
	if f.set["label"] {
		cfg.Run.Label = f.Label
	}
	if f.set["asset-class"] {
		cfg.Run.AssetClass = f.AssetClass
	}
	if f.set["bet"] {
		cfg.Run.BetAmount = f.BetAmount
	}
	if f.set["workers"] {
		cfg.Run.Workers = f.Workers
	}
	if f.set["params"] {
		params, err := parseParams(f.Params)
		if err != nil {
			return err
		}
		cfg.Run = *cfg.Run.WithParams(params)
	}
	if f.set["formats"] {
		cfg.OutputFormats = splitList(f.Formats)
	}
	if f.set["output-dir"] {
		cfg.OutputDir = f.OutputDir
	}
	if f.set["metrics-addr"] {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if f.set["log-level"] {
		cfg.LogLevel = f.LogLevel
	}
	if f.set["log-dir"] {
		cfg.LogDir = f.LogDir
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseSession reads "HHMMSS-HHMMSS"; an empty string clears the session
func parseSession(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	rawStart, rawEnd, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid session %q, expected HHMMSS-HHMMSS", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(rawStart))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session start: %w", err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(rawEnd))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session end: %w", err)
	}
	return start, end, nil
}

// parseParams reads "a=1,b=2"
func parseParams(s string) (map[string]float64, error) {
	params := make(map[string]float64)
	for _, pair := range splitList(s) {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

// parseGrid reads "a=1,2,3;b=10,20"
func parseGrid(s string) (backtest.ParamGrid, error) {
	grid := make(backtest.ParamGrid)
	for _, axis := range strings.Split(s, ";") {
		axis = strings.TrimSpace(axis)
		if axis == "" {
			continue
		}
		name, raw, ok := strings.Cut(axis, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid grid axis %q, expected name=v1,v2", axis)
		}
		values := splitList(raw)
		if len(values) == 0 {
			return nil, fmt.Errorf("grid axis %s has no values", name)
		}
		for _, rv := range values {
			v, err := strconv.ParseFloat(rv, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value for grid axis %s: %w", name, err)
			}
			grid[name] = append(grid[name], v)
		}
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	return grid, nil
}

func objectiveByName(name string) (backtest.Objective, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "return", "total_return":
		return backtest.ByTotalReturn, nil
	case "tpi", "performance_index":
		return backtest.ByPerformanceIndex, nil
	}
	return nil, fmt.Errorf("unknown objective %q, expected return or tpi", name)
}

// gridAxes lists the grid's parameter names in sorted order
func gridAxes(grid backtest.ParamGrid) []string {
	names := make([]string, 0, len(grid))
	for k := range grid {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
