// Package fees holds the pluggable fee/tax calculators applied when a
// position is closed. Schedules are policy tables, not engine logic: the
// defaults here are placeholders to be replaced by the broker's published rates.
package fees

import (
	"fmt"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
	"github.com/shopspring/decimal"
)

// Result is the outcome of pricing one round trip
type Result struct {
	Fee       float64
	Profit    float64
	ReturnPct float64
}

// Calculator prices a round trip from the bought and sold notional amounts
type Calculator interface {
	Calculate(entryAmount, exitAmount float64) Result
}

// Func adapts a plain function to Calculator
type Func func(entryAmount, exitAmount float64) Result

// Calculate calls f
func (f Func) Calculate(entryAmount, exitAmount float64) Result {
	return f(entryAmount, exitAmount)
}

// Zero charges nothing
var Zero Calculator = Func(func(entryAmount, exitAmount float64) Result {
	profit := exitAmount - entryAmount
	return Result{Profit: profit, ReturnPct: returnPct(profit, entryAmount)}
})

// EquitySchedule is a brokerage commission on both legs plus a transaction
// tax on the sell leg. Commissions are truncated down to FeeUnit, tax to 1.
type EquitySchedule struct {
	BuyFeeRate  decimal.Decimal
	SellFeeRate decimal.Decimal
	SellTaxRate decimal.Decimal
	FeeUnit     decimal.Decimal
}

// DefaultEquitySchedule returns 0.015% commission per leg, 0.18% sell tax,
// commissions truncated to 10 currency units
func DefaultEquitySchedule() EquitySchedule {
	return EquitySchedule{
		BuyFeeRate:  decimal.RequireFromString("0.00015"),
		SellFeeRate: decimal.RequireFromString("0.00015"),
		SellTaxRate: decimal.RequireFromString("0.0018"),
		FeeUnit:     decimal.NewFromInt(10),
	}
}

// Equity prices spot equity round trips
type Equity struct {
	schedule EquitySchedule
}

// NewEquity creates an equity calculator
func NewEquity(schedule EquitySchedule) *Equity {
	return &Equity{schedule: schedule}
}

// Calculate implements Calculator
func (e *Equity) Calculate(entryAmount, exitAmount float64) Result {
	entry := decimal.NewFromFloat(entryAmount)
	exit := decimal.NewFromFloat(exitAmount)

	buyFee := truncate(entry.Mul(e.schedule.BuyFeeRate), e.schedule.FeeUnit)
	sellFee := truncate(exit.Mul(e.schedule.SellFeeRate), e.schedule.FeeUnit)
	tax := truncate(exit.Mul(e.schedule.SellTaxRate), decimal.NewFromInt(1))

	fee := buyFee.Add(sellFee).Add(tax)
	profit := exit.Sub(entry).Sub(fee)
	return newResult(fee, profit, entry)
}

// CryptoSchedule is a proportional taker fee on both legs
type CryptoSchedule struct {
	FeeRate decimal.Decimal
}

// DefaultCryptoSchedule returns a 0.05% fee per leg
func DefaultCryptoSchedule() CryptoSchedule {
	return CryptoSchedule{FeeRate: decimal.RequireFromString("0.0005")}
}

// Crypto prices spot crypto round trips
type Crypto struct {
	schedule CryptoSchedule
}

// NewCrypto creates a crypto calculator
func NewCrypto(schedule CryptoSchedule) *Crypto {
	return &Crypto{schedule: schedule}
}

// Calculate implements Calculator
func (c *Crypto) Calculate(entryAmount, exitAmount float64) Result {
	entry := decimal.NewFromFloat(entryAmount)
	exit := decimal.NewFromFloat(exitAmount)

	fee := entry.Add(exit).Mul(c.schedule.FeeRate)
	profit := exit.Sub(entry).Sub(fee)
	return newResult(fee, profit, entry)
}

// ForAssetClass returns the default calculator for class
func ForAssetClass(class types.AssetClass) (Calculator, error) {
	switch class {
	case types.AssetEquity:
		return NewEquity(DefaultEquitySchedule()), nil
	case types.AssetCrypto:
		return NewCrypto(DefaultCryptoSchedule()), nil
	default:
		return nil, fmt.Errorf("no fee schedule for asset class %s", class)
	}
}

// ByName resolves "zero", "equity" or "crypto"
func ByName(name string) (Calculator, error) {
	switch name {
	case "zero", "none":
		return Zero, nil
	case "equity", "stock":
		return NewEquity(DefaultEquitySchedule()), nil
	case "crypto", "coin":
		return NewCrypto(DefaultCryptoSchedule()), nil
	default:
		return nil, fmt.Errorf("unknown fee schedule %q", name)
	}
}

func truncate(v, unit decimal.Decimal) decimal.Decimal {
	if unit.IsZero() {
		return v
	}
	return v.Div(unit).Floor().Mul(unit)
}

func newResult(fee, profit, entry decimal.Decimal) Result {
	r := Result{
		Fee:    fee.InexactFloat64(),
		Profit: profit.InexactFloat64(),
	}
	if !entry.IsZero() {
		r.ReturnPct = profit.Div(entry).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return r
}

func returnPct(profit, entry float64) float64 {
	if entry == 0 {
		return 0
	}
	return profit / entry * 100
}
