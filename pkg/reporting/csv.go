package reporting

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
)

// TradeColumns is the header of the trade table export
var TradeColumns = []string{
	"label", "instrument_name", "signal_tag", "entry_timestamp", "exit_timestamp",
	"holding_time_sec", "entry_price", "exit_price", "quantity", "entry_amount",
	"exit_amount", "fee_amount", "profit_amount", "return_pct", "sell_reason_code",
	"add_buy_log_str", "is_valid", "turn", "slot", "cumulative_profit",
}

// ExposureColumns is the header of the exposure table export
var ExposureColumns = []string{"timestamp", "open_position_count", "exposure_amount"}

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes the assembled trade table to path
func (r *DefaultCSVReporter) WriteTradesCSV(trades []backtest.TradeRecord, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteTrades(w, trades) })
}

// WriteExposureCSV writes the filtered exposure table to path
func (r *DefaultCSVReporter) WriteExposureCSV(exposure []backtest.ExposureSample, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteExposure(w, exposure) })
}

// WriteTrades writes a header row and one row per trade
func WriteTrades(out io.Writer, trades []backtest.TradeRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(TradeColumns); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Label,
			t.InstrumentName,
			t.SignalTag,
			strconv.FormatInt(t.EntryTimestamp, 10),
			strconv.FormatInt(t.ExitTimestamp, 10),
			strconv.FormatInt(t.HoldingTimeSec, 10),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Quantity),
			formatFloat(t.EntryAmount),
			formatFloat(t.ExitAmount),
			formatFloat(t.FeeAmount),
			formatFloat(t.ProfitAmount),
			formatFloat(t.ReturnPct),
			strconv.Itoa(t.SellReasonCode),
			t.AddBuyLog,
			strconv.FormatBool(t.IsValid),
			strconv.Itoa(t.Turn),
			strconv.Itoa(t.Slot),
			formatFloat(t.CumulativeProfit),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteExposure writes a header row and one row per exposure sample
func WriteExposure(out io.Writer, exposure []backtest.ExposureSample) error {
	w := csv.NewWriter(out)
	if err := w.Write(ExposureColumns); err != nil {
		return err
	}
	for _, e := range exposure {
		row := []string{
			strconv.FormatInt(e.Timestamp, 10),
			strconv.Itoa(e.OpenPositionCount),
			formatFloat(e.ExposureAmount),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeFile creates path (and its directory) and hands it to fn
func writeFile(path string, fn func(io.Writer) error) error {
	if err := NewDefaultPathManager().EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
