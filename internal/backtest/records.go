package backtest

import (
	"strconv"
	"strings"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
)

// DefaultSignalTag labels entries whose buy rule did not call Tag
const DefaultSignalTag = "buy"

// TradeRecord is one closed position. Records are never mutated after the
// close except for CumulativeProfit, which assembly fills in sorted order.
type TradeRecord struct {
	Label            string  `json:"label"`
	InstrumentName   string  `json:"instrument_name"`
	SignalTag        string  `json:"signal_tag"`
	EntryTimestamp   int64   `json:"entry_timestamp"`
	ExitTimestamp    int64   `json:"exit_timestamp"`
	HoldingTimeSec   int64   `json:"holding_time_sec"`
	EntryPrice       float64 `json:"entry_price"`
	ExitPrice        float64 `json:"exit_price"`
	Quantity         float64 `json:"quantity"`
	EntryAmount      float64 `json:"entry_amount"`
	ExitAmount       float64 `json:"exit_amount"`
	FeeAmount        float64 `json:"fee_amount"`
	ProfitAmount     float64 `json:"profit_amount"`
	ReturnPct        float64 `json:"return_pct"`
	SellReasonCode   int     `json:"sell_reason_code"`
	AddBuyLog        string  `json:"add_buy_log"`
	IsValid          bool    `json:"is_valid"`
	Turn             int     `json:"turn"`
	Slot             int     `json:"slot"`
	CumulativeProfit float64 `json:"cumulative_profit"`
}

// ExposureSample is the deployed capital at one timestamp
type ExposureSample struct {
	Timestamp         int64   `json:"timestamp"`
	OpenPositionCount int     `json:"open_position_count"`
	ExposureAmount    float64 `json:"exposure_amount"`
}

// AddBuy is one fill of a position, the first being the entry
type AddBuy struct {
	Timestamp int64
	Price     float64
}

// formatAddBuys renders fills as "ts:price;ts:price"
func formatAddBuys(fills []AddBuy) string {
	var b strings.Builder
	for i, f := range fills {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatInt(f.Timestamp, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(f.Price, 'f', -1, 64))
	}
	return b.String()
}

// Diagnostics aggregates the absorbed per-tick conditions of a run
type Diagnostics struct {
	Instruments  int `json:"instruments"`
	Ticks        int `json:"ticks"`
	RuleErrors   int `json:"rule_errors"`
	SkippedBuys  int `json:"skipped_buys"`
	AddBuys      int `json:"add_buys"`
	ForcedCloses int `json:"forced_closes"`

	Errors *bterrors.ErrorStats `json:"-"`
}

func newDiagnostics() Diagnostics {
	return Diagnostics{Errors: bterrors.NewErrorStats(20)}
}

// Merge folds another instrument's diagnostics into d
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Instruments += other.Instruments
	d.Ticks += other.Ticks
	d.RuleErrors += other.RuleErrors
	d.SkippedBuys += other.SkippedBuys
	d.AddBuys += other.AddBuys
	d.ForcedCloses += other.ForcedCloses
	if d.Errors == nil {
		d.Errors = bterrors.NewErrorStats(20)
	}
	d.Errors.Merge(other.Errors)
}
