package reporting

import (
	"fmt"

	"github.com/ducminhle1904/tick-backtester/internal/backtest"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the result workbook
const (
	TradesSheet   = "Trades"
	ExposureSheet = "Exposure"
	MetricsSheet  = "Metrics"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteWorkbookXLSX writes the trade table, exposure table and metrics to one workbook
func (r *DefaultExcelReporter) WriteWorkbookXLSX(result *backtest.RunResult, path string) error {
	if err := NewDefaultPathManager().EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), MetricsSheet)
	if _, err := fx.NewSheet(TradesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(ExposureSheet); err != nil {
		return err
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := r.WriteMetricsSheet(fx, MetricsSheet, result, styles); err != nil {
		return err
	}
	if err := r.WriteTradesSheet(fx, TradesSheet, result.Trades, styles); err != nil {
		return err
	}
	if err := r.WriteExposureSheet(fx, ExposureSheet, result.Exposure, styles); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thinBorder := func(color string) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: color, Style: 1},
			{Type: "right", Color: color, Style: 1},
			{Type: "bottom", Color: color, Style: 1},
		}
	}

	// Header style - dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    2, // 0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.RedCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4,
		Font:      &excelize.Font{Color: "C00000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.GreenCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	// Session-end closes are shaded
	styles.ForcedCloseStyle, err = fx.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFF2CC"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorder("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// setRow writes values into row, styling each cell with styleFor(column)
func setRow(fx *excelize.File, sheet string, row int, values []interface{}, styleFor func(col int) int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, styleFor(i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteTradesSheet writes one row per trade with the export column layout
func (r *DefaultExcelReporter) WriteTradesSheet(fx *excelize.File, sheet string, trades []backtest.TradeRecord, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "C", 14) // Label, Instrument, Tag
	fx.SetColWidth(sheet, "D", "E", 18) // Entry / exit timestamps
	fx.SetColWidth(sheet, "F", "N", 12) // Numbers
	fx.SetColWidth(sheet, "O", "O", 10) // Reason
	fx.SetColWidth(sheet, "P", "P", 40) // Add-buy log
	fx.SetColWidth(sheet, "Q", "T", 10) // Valid, turn, slot, cumulative

	if err := writeHeader(fx, sheet, TradeColumns, styles.HeaderStyle); err != nil {
		return err
	}

	for i, t := range trades {
		profitStyle := styles.GreenCurrencyStyle
		if t.ProfitAmount < 0 {
			profitStyle = styles.RedCurrencyStyle
		}
		values := []interface{}{
			t.Label, t.InstrumentName, t.SignalTag,
			t.EntryTimestamp, t.ExitTimestamp, t.HoldingTimeSec,
			t.EntryPrice, t.ExitPrice, t.Quantity,
			t.EntryAmount, t.ExitAmount, t.FeeAmount, t.ProfitAmount, t.ReturnPct,
			t.SellReasonCode, t.AddBuyLog, t.IsValid, t.Turn, t.Slot, t.CumulativeProfit,
		}
		err := setRow(fx, sheet, i+2, values, func(col int) int {
			switch {
			case col == 12:
				return profitStyle
			case col == 13:
				return styles.NumberStyle
			case col == 14 && t.SellReasonCode == backtest.SessionEnd:
				return styles.ForcedCloseStyle
			case col <= 5 || (col >= 14 && col <= 18):
				return styles.BaseStyle
			default:
				return styles.CurrencyStyle
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteExposureSheet writes the exposure samples with open positions
func (r *DefaultExcelReporter) WriteExposureSheet(fx *excelize.File, sheet string, exposure []backtest.ExposureSample, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 18)
	fx.SetColWidth(sheet, "B", "C", 20)

	if err := writeHeader(fx, sheet, ExposureColumns, styles.HeaderStyle); err != nil {
		return err
	}
	for i, e := range exposure {
		values := []interface{}{e.Timestamp, e.OpenPositionCount, e.ExposureAmount}
		err := setRow(fx, sheet, i+2, values, func(col int) int {
			if col == 2 {
				return styles.CurrencyStyle
			}
			return styles.BaseStyle
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteMetricsSheet writes run identity, status and the metric vector as name/value pairs
func (r *DefaultExcelReporter) WriteMetricsSheet(fx *excelize.File, sheet string, result *backtest.RunResult, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "B", 40)

	m := result.Metrics
	rows := []struct {
		name  string
		value interface{}
	}{
		{"Label", result.Label},
		{"Run ID", result.RunID},
		{"Status", string(result.Status)},
		{"Error", result.Error},
		{"Parameters", formatParams(result.Params)},
		{"Days", result.DayCount},
		{"Trade Count", m.TradeCount},
		{"Avg Daily Trade Count", m.AvgDailyTradeCount},
		{"Profit Trades", m.ProfitTradeCount},
		{"Loss Trades", m.LossTradeCount},
		{"Win Rate %", m.WinRatePct},
		{"Avg Holding Time (s)", m.AvgHoldingTimeSec},
		{"Avg Return %", m.AvgReturnPct},
		{"Total Return %", m.TotalReturnPct},
		{"Total Profit", m.TotalProfitAmount},
		{"Max Exposure Count", m.MaxExposureCount},
		{"Required Capital", m.RequiredCapital},
		{"CAGR Proxy %", m.CAGRProxy},
		{"Trading Performance Index", m.TradingPerformanceIndex},
		{"Max Drawdown %", m.MaxDrawdownPct},
		{"Max Drawdown", m.MaxDrawdownAmount},
	}

	if err := fx.SetCellValue(sheet, "A1", "Metric"); err != nil {
		return err
	}
	if err := fx.SetCellValue(sheet, "B1", "Value"); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", styles.HeaderStyle); err != nil {
		return err
	}

	for i, row := range rows {
		valueStyle := styles.BaseStyle
		if _, ok := row.value.(float64); ok {
			valueStyle = styles.NumberStyle
		}
		err := setRow(fx, sheet, i+2, []interface{}{row.name, row.value}, func(col int) int {
			if col == 0 {
				return styles.SummaryStyle
			}
			return valueStyle
		})
		if err != nil {
			return err
		}
	}
	return nil
}
