package types

import (
	"fmt"
	"strings"
)

// AssetClass selects the tick schema, fee schedule and annualisation constant
type AssetClass int

const (
	AssetEquity AssetClass = iota
	AssetCrypto
)

func (a AssetClass) String() string {
	switch a {
	case AssetEquity:
		return "equity"
	case AssetCrypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// TradingDaysPerYear returns the constant used to annualise returns
func (a AssetClass) TradingDaysPerYear() float64 {
	if a == AssetCrypto {
		return 365
	}
	return 250
}

// ParseAssetClass parses "equity"/"stock" or "crypto"/"coin"
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equity", "stock", "":
		return AssetEquity, nil
	case "crypto", "coin":
		return AssetCrypto, nil
	default:
		return AssetEquity, fmt.Errorf("unknown asset class %q", s)
	}
}

// OrderBook holds the top of book and total depth sampled with the tick
type OrderBook struct {
	AskPrice1 float64
	BidPrice1 float64
	AskQty1   float64
	BidQty1   float64
	AskTotal  float64
	BidTotal  float64
}

// TickFlags carries instrument-class specific boolean columns
type TickFlags struct {
	RoundLot bool // equity: trade printed in round lots
	Halted   bool // equity: volatility interruption in effect
}

// TickRecord is one row of market state at a timestamp.
// Timestamp is YYYYMMDDhhmmss for intraday series or YYYYMMDD for daily ones.
type TickRecord struct {
	Timestamp     int64
	LastPrice     float64
	Open          float64
	High          float64
	Low           float64
	PctChange     float64
	ValueTraded   float64
	TradeStrength float64
	Book          OrderBook
	Flags         TickFlags
}

// Field selects a numeric column of a TickRecord
type Field int

const (
	FieldLastPrice Field = iota
	FieldOpen
	FieldHigh
	FieldLow
	FieldPctChange
	FieldValueTraded
	FieldTradeStrength
	FieldAskPrice1
	FieldBidPrice1
	FieldAskQty1
	FieldBidQty1
	FieldAskTotal
	FieldBidTotal
)

var fieldNames = map[string]Field{
	"price":    FieldLastPrice,
	"open":     FieldOpen,
	"high":     FieldHigh,
	"low":      FieldLow,
	"pct":      FieldPctChange,
	"value":    FieldValueTraded,
	"strength": FieldTradeStrength,
	"ask1":     FieldAskPrice1,
	"bid1":     FieldBidPrice1,
	"askqty1":  FieldAskQty1,
	"bidqty1":  FieldBidQty1,
	"asktotal": FieldAskTotal,
	"bidtotal": FieldBidTotal,
}

// ParseField resolves a column name used in rules and CSV headers
func ParseField(name string) (Field, bool) {
	f, ok := fieldNames[strings.ToLower(name)]
	return f, ok
}

// FieldNames returns every recognised column name
func FieldNames() []string {
	names := make([]string, 0, len(fieldNames))
	for n := range fieldNames {
		names = append(names, n)
	}
	return names
}

func (f Field) String() string {
	for n, v := range fieldNames {
		if v == f {
			return n
		}
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Value returns the column selected by f
func (t *TickRecord) Value(f Field) float64 {
	switch f {
	case FieldLastPrice:
		return t.LastPrice
	case FieldOpen:
		return t.Open
	case FieldHigh:
		return t.High
	case FieldLow:
		return t.Low
	case FieldPctChange:
		return t.PctChange
	case FieldValueTraded:
		return t.ValueTraded
	case FieldTradeStrength:
		return t.TradeStrength
	case FieldAskPrice1:
		return t.Book.AskPrice1
	case FieldBidPrice1:
		return t.Book.BidPrice1
	case FieldAskQty1:
		return t.Book.AskQty1
	case FieldBidQty1:
		return t.Book.BidQty1
	case FieldAskTotal:
		return t.Book.AskTotal
	case FieldBidTotal:
		return t.Book.BidTotal
	default:
		return 0
	}
}

// TickSeries is the time-ordered tick sequence of one instrument.
// The engine only reads it; averages are joined by the loader.
type TickSeries struct {
	Code  string
	Name  string
	Class AssetClass
	Ticks []TickRecord

	averages map[int][]float64
}

// NewTickSeries creates a series without precomputed averages
func NewTickSeries(code, name string, class AssetClass, ticks []TickRecord) *TickSeries {
	return &TickSeries{
		Code:  code,
		Name:  name,
		Class: class,
		Ticks: ticks,
	}
}

// Len returns the number of ticks
func (s *TickSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Ticks)
}

// PrecomputeAverages joins last-price moving-average columns for each window.
// Positions with fewer than w preceding ticks hold 0.
func (s *TickSeries) PrecomputeAverages(windows []int) {
	if s.averages == nil {
		s.averages = make(map[int][]float64, len(windows))
	}
	n := len(s.Ticks)
	for _, w := range windows {
		if w <= 0 {
			continue
		}
		if _, done := s.averages[w]; done {
			continue
		}
		col := make([]float64, n)
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += s.Ticks[i].LastPrice
			if i >= w {
				sum -= s.Ticks[i-w].LastPrice
			}
			if i >= w-1 {
				col[i] = sum / float64(w)
			}
		}
		s.averages[w] = col
	}
}

// Average returns the precomputed moving-average column for window w
func (s *TickSeries) Average(w int) ([]float64, bool) {
	col, ok := s.averages[w]
	return col, ok
}

// Validate checks the non-decreasing timestamp invariant
func (s *TickSeries) Validate() error {
	for i := 1; i < len(s.Ticks); i++ {
		if s.Ticks[i].Timestamp < s.Ticks[i-1].Timestamp {
			return fmt.Errorf("%s: timestamp %d at index %d precedes %d", s.Code, s.Ticks[i].Timestamp, i, s.Ticks[i-1].Timestamp)
		}
	}
	return nil
}
