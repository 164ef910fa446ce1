package reporting

import (
	"io"
	"path/filepath"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

// Console output methods
func (r *DefaultReporter) OutputResults(w io.Writer, result *backtest.RunResult) {
	r.console.OutputResults(w, result)
}

func (r *DefaultReporter) OutputTrades(w io.Writer, trades []backtest.TradeRecord, limit int) {
	r.console.OutputTrades(w, trades, limit)
}

func (r *DefaultReporter) OutputTrials(w io.Writer, trials []backtest.Trial) {
	r.console.OutputTrials(w, trials)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(trades []backtest.TradeRecord, path string) error {
	return r.csv.WriteTradesCSV(trades, path)
}

func (r *DefaultReporter) WriteExposureCSV(exposure []backtest.ExposureSample, path string) error {
	return r.csv.WriteExposureCSV(exposure, path)
}

func (r *DefaultReporter) WriteResultJSON(result *backtest.RunResult, path string) error {
	return r.json.WriteResultJSON(result, path)
}

func (r *DefaultReporter) WriteTrialsJSON(trials []backtest.Trial, path string) error {
	return r.json.WriteTrialsJSON(trials, path)
}

func (r *DefaultReporter) WriteWorkbookXLSX(result *backtest.RunResult, path string) error {
	return r.excel.WriteWorkbookXLSX(result, path)
}

// Path management methods
func (r *DefaultReporter) GetDefaultOutputDir(label, runID string) string {
	return r.paths.GetDefaultOutputDir(label, runID)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
	out      io.Writer
}

// NewReportingManager creates a new reporting manager writing console output to out
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	reporter := NewDefaultReporter()
	if config.OutputRoot != "" {
		reporter.paths.Root = config.OutputRoot
	}
	return &ReportingManager{
		reporter: reporter,
		config:   config,
		out:      out,
	}
}

// Reporter returns the underlying reporter
func (m *ReportingManager) Reporter() *DefaultReporter {
	return m.reporter
}

func (m *ReportingManager) outputDir(label, runID string) string {
	if m.config.OutputDirectory != "" {
		return m.config.OutputDirectory
	}
	return m.reporter.GetDefaultOutputDir(label, runID)
}

// ReportResults outputs one run according to configuration and returns the written file paths
func (m *ReportingManager) ReportResults(result *backtest.RunResult) ([]string, error) {
	if m.config.Enabled(FormatConsole) && m.out != nil {
		m.reporter.OutputResults(m.out, result)
		if len(result.Trades) > 0 {
			m.reporter.OutputTrades(m.out, result.Trades, m.config.TradeRowLimit)
		}
	}

	dir := m.outputDir(result.Label, result.RunID)
	var written []string

	if m.config.Enabled(FormatCSV) {
		tradesPath := filepath.Join(dir, "trades.csv")
		if err := m.reporter.WriteTradesCSV(result.Trades, tradesPath); err != nil {
			return written, err
		}
		exposurePath := filepath.Join(dir, "exposure.csv")
		if err := m.reporter.WriteExposureCSV(result.Exposure, exposurePath); err != nil {
			return written, err
		}
		written = append(written, tradesPath, exposurePath)
	}

	if m.config.Enabled(FormatJSON) {
		path := filepath.Join(dir, "result.json")
		if err := m.reporter.WriteResultJSON(result, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if m.config.Enabled(FormatExcel) {
		path := filepath.Join(dir, "result.xlsx")
		if err := m.reporter.WriteWorkbookXLSX(result, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

// ReportTrials outputs an optimizer sweep: a console ranking and trials.json
func (m *ReportingManager) ReportTrials(label string, trials []backtest.Trial) ([]string, error) {
	if m.config.Enabled(FormatConsole) && m.out != nil {
		m.reporter.OutputTrials(m.out, trials)
	}
	if !m.config.Enabled(FormatJSON) {
		return nil, nil
	}
	path := filepath.Join(m.outputDir(label+"_optimize", ""), "trials.json")
	if err := m.reporter.WriteTrialsJSON(trials, path); err != nil {
		return nil, err
	}
	return []string{path}, nil
}
