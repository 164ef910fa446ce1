package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
)

// DefaultConsoleReporter renders runs as go-pretty tables
type DefaultConsoleReporter struct{}

// NewDefaultConsoleReporter creates a new console reporter
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// OutputResults prints run header, metrics and diagnostics
func (r *DefaultConsoleReporter) OutputResults(w io.Writer, result *backtest.RunResult) {
	run := newTable(w, "BACKTEST RUN")
	run.AppendRows([]table.Row{
		{"Run ID", result.RunID},
		{"Label", result.Label},
		{"Turn", result.Turn},
		{"Status", string(result.Status)},
		{"Days", result.DayCount},
		{"Duration", result.Duration.String()},
	})
	if len(result.Params) > 0 {
		run.AppendRow(table.Row{"Params", formatParams(result.Params)})
	}
	if result.Error != "" {
		run.AppendRow(table.Row{"Error", result.Error})
	}
	run.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})
	run.Render()

	if result.Status != backtest.StatusSuccess && result.Status != backtest.StatusNoTrades {
		return
	}

	m := result.Metrics
	metrics := newTable(w, "PERFORMANCE")
	metrics.AppendRows([]table.Row{
		{"Trades", m.TradeCount},
		{"Avg Daily Trades", fmt.Sprintf("%.2f", m.AvgDailyTradeCount)},
		{"Winning / Losing", fmt.Sprintf("%d / %d", m.ProfitTradeCount, m.LossTradeCount)},
		{"Win Rate", fmt.Sprintf("%.2f%%", m.WinRatePct)},
		{"Avg Holding", fmt.Sprintf("%.0fs", m.AvgHoldingTimeSec)},
		{"Avg Return", fmt.Sprintf("%.3f%%", m.AvgReturnPct)},
	})
	metrics.AppendSeparator()
	metrics.AppendRows([]table.Row{
		{"Total Profit", fmt.Sprintf("%.2f", m.TotalProfitAmount)},
		{"Total Return", fmt.Sprintf("%.3f%%", m.TotalReturnPct)},
		{"Required Capital", fmt.Sprintf("%.2f", m.RequiredCapital)},
		{"Max Exposure", m.MaxExposureCount},
		{"CAGR Proxy", fmt.Sprintf("%.3f%%", m.CAGRProxy)},
		{"Perf. Index", fmt.Sprintf("%.3f", m.TradingPerformanceIndex)},
		{"Max Drawdown", fmt.Sprintf("%.2f (%.3f%%)", m.MaxDrawdownAmount, m.MaxDrawdownPct)},
	})
	metrics.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	metrics.Render()

	d := result.Diagnostics
	diag := newTable(w, "DIAGNOSTICS")
	diag.AppendRows([]table.Row{
		{"Instruments", d.Instruments},
		{"Ticks", d.Ticks},
		{"Rule Errors", d.RuleErrors},
		{"Skipped Buys", d.SkippedBuys},
		{"Add Buys", d.AddBuys},
		{"Forced Closes", d.ForcedCloses},
	})
	if d.Errors != nil {
		for _, category := range d.Errors.Categories() {
			diag.AppendRow(table.Row{"  " + string(category), d.Errors.Count(category)})
		}
	}
	diag.Render()
}

// OutputTrades prints up to limit trades in assembled order, 0 = all
func (r *DefaultConsoleReporter) OutputTrades(w io.Writer, trades []backtest.TradeRecord, limit int) {
	t := newTable(w, "TRADES")
	t.AppendHeader(table.Row{"#", "Instrument", "Tag", "Entry", "Exit", "Entry Px", "Exit Px", "Qty", "Profit", "Ret %", "Reason", "Cum. Profit"})
	for i, tr := range trades {
		if limit > 0 && i >= limit {
			t.AppendFooter(table.Row{"", fmt.Sprintf("... %d more", len(trades)-limit)})
			break
		}
		t.AppendRow(table.Row{
			i + 1, tr.Label, tr.SignalTag, tr.EntryTimestamp, tr.ExitTimestamp,
			fmt.Sprintf("%.4f", tr.EntryPrice), fmt.Sprintf("%.4f", tr.ExitPrice), tr.Quantity,
			fmt.Sprintf("%.2f", tr.ProfitAmount), fmt.Sprintf("%.3f", tr.ReturnPct),
			reasonLabel(tr.SellReasonCode), fmt.Sprintf("%.2f", tr.CumulativeProfit),
		})
	}
	t.Render()
}

// OutputTrials prints optimizer trials ranked by score
func (r *DefaultConsoleReporter) OutputTrials(w io.Writer, trials []backtest.Trial) {
	ranked := make([]backtest.Trial, len(trials))
	copy(ranked, trials)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	t := newTable(w, "OPTIMIZATION")
	t.AppendHeader(table.Row{"Rank", "Turn", "Params", "Status", "Trades", "Total Ret %", "Score"})
	for i, tr := range ranked {
		status, trades, ret := "-", 0, 0.0
		if tr.Result != nil {
			status = string(tr.Result.Status)
			trades = tr.Result.Metrics.TradeCount
			ret = tr.Result.Metrics.TotalReturnPct
		}
		t.AppendRow(table.Row{i + 1, tr.Turn, formatParams(tr.Params), status, trades, fmt.Sprintf("%.3f", ret), fmt.Sprintf("%.4f", tr.Score)})
	}
	t.Render()
}

func reasonLabel(code int) string {
	if code == backtest.SessionEnd {
		return "SESSION_END"
	}
	return fmt.Sprintf("%d", code)
}

// formatParams renders params sorted by name as k=v pairs
func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}
