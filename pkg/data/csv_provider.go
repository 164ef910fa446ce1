package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/logger"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// CSVProvider implements TickProvider for per-instrument CSV files under a data root
type CSVProvider struct {
	dataRoot string
	class    types.AssetClass
	format   CSVColumnMapping
	locator  FileLocator
	log      *logger.Logger
}

// CSVOption customises a CSVProvider
type CSVOption func(*CSVProvider)

// WithFormat overrides the column mapping
func WithFormat(format CSVColumnMapping) CSVOption {
	return func(p *CSVProvider) { p.format = format }
}

// WithLocator overrides how instrument files are found
func WithLocator(locator FileLocator) CSVOption {
	return func(p *CSVProvider) { p.locator = locator }
}

// WithCSVLogger sets the logger used for skipped rows
func WithCSVLogger(log *logger.Logger) CSVOption {
	return func(p *CSVProvider) { p.log = log }
}

// NewCSVProvider creates a CSV tick provider with the default format
func NewCSVProvider(dataRoot string, class types.AssetClass, opts ...CSVOption) *CSVProvider {
	p := &CSVProvider{
		dataRoot: dataRoot,
		class:    class,
		format:   DefaultCSVFormat,
		locator:  NewDefaultFileLocator(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the name of the data provider
func (p *CSVProvider) Name() string {
	return "CSV Provider"
}

// LoadSeries locates and parses the CSV file of code
func (p *CSVProvider) LoadSeries(ctx context.Context, code string) (*types.TickSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.locator.FindDataFile(p.dataRoot, code)
	if path == "" {
		return nil, bterrors.NewDataError("csv_provider", "locate",
			fmt.Errorf("no data file for %s under %s", code, p.dataRoot))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, bterrors.NewDataError("csv_provider", "open", err)
	}
	defer file.Close()

	series, err := p.Parse(file, code)
	if err != nil {
		return nil, bterrors.NewDataError("csv_provider", "parse", fmt.Errorf("%s: %w", path, err))
	}
	return series, nil
}

// columnLayout is a header resolved against the mapping
type columnLayout struct {
	timestamp int
	name      int
	halted    int
	roundLot  int
	fields    map[int]types.Field
}

func (p *CSVProvider) resolveHeader(header []string) (columnLayout, error) {
	layout := columnLayout{timestamp: -1, name: -1, halted: -1, roundLot: -1, fields: make(map[int]types.Field)}
	for i, raw := range header {
		col := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if alias, ok := p.format.Aliases[col]; ok {
			col = alias
		}
		switch col {
		case p.format.TimestampCol:
			layout.timestamp = i
			continue
		case "":
			continue
		}
		if p.format.NameCol != "" && col == p.format.NameCol {
			layout.name = i
			continue
		}
		if p.format.HaltedCol != "" && col == p.format.HaltedCol {
			layout.halted = i
			continue
		}
		if p.format.RoundLotCol != "" && col == p.format.RoundLotCol {
			layout.roundLot = i
			continue
		}
		if f, ok := types.ParseField(col); ok {
			layout.fields[i] = f
		}
	}

	if layout.timestamp < 0 {
		return layout, fmt.Errorf("header has no %q column", p.format.TimestampCol)
	}
	hasPrice := false
	for _, f := range layout.fields {
		if f == types.FieldLastPrice {
			hasPrice = true
		}
	}
	if !hasPrice {
		return layout, fmt.Errorf("header has no price column")
	}
	return layout, nil
}

// Parse reads a header row followed by tick rows. Malformed rows are skipped.
func (p *CSVProvider) Parse(r io.Reader, code string) (*types.TickSeries, error) {
	reader := csv.NewReader(r)
	if p.format.Comma != 0 {
		reader.Comma = p.format.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return types.NewTickSeries(code, code, p.class, nil), nil
		}
		return nil, err
	}
	layout, err := p.resolveHeader(header)
	if err != nil {
		return nil, err
	}

	name := code
	var ticks []types.TickRecord
	skipped := 0
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %v", lineNum, err)
		}
		lineNum++

		tick, err := p.parseRow(record, layout)
		if err != nil {
			skipped++
			p.log.Warnw("skipping tick row", "code", code, "line", lineNum, "error", err)
			continue
		}
		if layout.name >= 0 && layout.name < len(record) && name == code {
			if v := strings.TrimSpace(record[layout.name]); v != "" {
				name = v
			}
		}
		ticks = append(ticks, tick)
	}

	if skipped > 0 {
		p.log.Infow("tick rows skipped", "code", code, "skipped", skipped, "loaded", len(ticks))
	}
	return types.NewTickSeries(code, name, p.class, ticks), nil
}

func (p *CSVProvider) parseRow(record []string, layout columnLayout) (types.TickRecord, error) {
	var tick types.TickRecord
	if layout.timestamp >= len(record) {
		return tick, fmt.Errorf("insufficient columns (%d)", len(record))
	}
	ts, err := p.parseTimestamp(record[layout.timestamp])
	if err != nil {
		return tick, err
	}
	tick.Timestamp = ts

	for i, f := range layout.fields {
		if i >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[i])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return tick, fmt.Errorf("invalid %s %q", f, raw)
		}
		setField(&tick, f, v)
	}
	if tick.LastPrice <= 0 {
		return tick, fmt.Errorf("non-positive price %v", tick.LastPrice)
	}

	if layout.halted >= 0 && layout.halted < len(record) {
		tick.Flags.Halted = parseFlag(record[layout.halted])
	}
	if layout.roundLot >= 0 && layout.roundLot < len(record) {
		tick.Flags.RoundLot = parseFlag(record[layout.roundLot])
	}
	return tick, nil
}

func (p *CSVProvider) parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// 13 digits: epoch milliseconds as exported by exchange kline dumps
		if len(raw) == 13 {
			return types.FormatStamp(time.UnixMilli(ts)), nil
		}
		if _, err := types.ParseStamp(ts); err != nil {
			return 0, err
		}
		return ts, nil
	}
	if p.format.DateFormat != "" {
		if t, err := time.Parse(p.format.DateFormat, raw); err == nil {
			return types.FormatStamp(t), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp %q", raw)
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "y", "yes", "t":
		return true
	}
	return false
}

// setField writes v into the column selected by f
func setField(t *types.TickRecord, f types.Field, v float64) {
	switch f {
	case types.FieldLastPrice:
		t.LastPrice = v
	case types.FieldOpen:
		t.Open = v
	case types.FieldHigh:
		t.High = v
	case types.FieldLow:
		t.Low = v
	case types.FieldPctChange:
		t.PctChange = v
	case types.FieldValueTraded:
		t.ValueTraded = v
	case types.FieldTradeStrength:
		t.TradeStrength = v
	case types.FieldAskPrice1:
		t.Book.AskPrice1 = v
	case types.FieldBidPrice1:
		t.Book.BidPrice1 = v
	case types.FieldAskQty1:
		t.Book.AskQty1 = v
	case types.FieldBidQty1:
		t.Book.BidQty1 = v
	case types.FieldAskTotal:
		t.Book.AskTotal = v
	case types.FieldBidTotal:
		t.Book.BidTotal = v
	}
}
