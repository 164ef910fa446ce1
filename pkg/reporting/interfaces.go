// Package reporting renders backtest runs for people and downstream tools
package reporting

import (
	"io"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	"github.com/xuri/excelize/v2"
)

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(w io.Writer, result *backtest.RunResult)
	OutputTrades(w io.Writer, trades []backtest.TradeRecord, limit int)
	OutputTrials(w io.Writer, trials []backtest.Trial)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(trades []backtest.TradeRecord, path string) error
	WriteExposureCSV(exposure []backtest.ExposureSample, path string) error
	WriteResultJSON(result *backtest.RunResult, path string) error
	WriteWorkbookXLSX(result *backtest.RunResult, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(label, runID string) string
	EnsureDirectoryExists(path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle        int
	CurrencyStyle      int
	NumberStyle        int
	BaseStyle          int
	RedCurrencyStyle   int
	GreenCurrencyStyle int
	ForcedCloseStyle   int
	SummaryStyle       int
}

// ExcelFormatter defines interface for Excel-specific formatting
type ExcelFormatter interface {
	WriteTradesSheet(fx *excelize.File, sheet string, trades []backtest.TradeRecord, styles ExcelStyles) error
	WriteExposureSheet(fx *excelize.File, sheet string, exposure []backtest.ExposureSample, styles ExcelStyles) error
	WriteMetricsSheet(fx *excelize.File, sheet string, result *backtest.RunResult, styles ExcelStyles) error
}

// Output format names accepted by ReportingConfig.Formats
const (
	FormatConsole = "console"
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatExcel   = "excel"
)

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	Formats         []string
	OutputRoot      string // parent of the per-run directories, default "results"
	OutputDirectory string // fixed directory; empty uses <root>/<label>_<run>
	TradeRowLimit   int    // console trade rows, 0 = all
}

// Enabled reports whether format is requested
func (c ReportingConfig) Enabled(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}
