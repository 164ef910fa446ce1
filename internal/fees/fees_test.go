package fees

import (
	"testing"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero_SimpleWin(t *testing.T) {
	r := Zero.Calculate(1000, 1100)

	assert.Equal(t, 0.0, r.Fee)
	assert.Equal(t, 100.0, r.Profit)
	assert.InDelta(t, 10.0, r.ReturnPct, 1e-12)
}

func TestZero_EmptyEntry(t *testing.T) {
	r := Zero.Calculate(0, 0)
	assert.Equal(t, Result{}, r)
}

func TestEquity_RoundTripAtSamePrice(t *testing.T) {
	calc := NewEquity(DefaultEquitySchedule())

	r := calc.Calculate(1_000_000, 1_000_000)

	// 150 + 150 commission, 1800 tax
	assert.Equal(t, 2100.0, r.Fee)
	assert.Equal(t, -r.Fee, r.Profit)
	assert.InDelta(t, -0.21, r.ReturnPct, 1e-12)
}

func TestEquity_TruncatesCommissionToUnit(t *testing.T) {
	calc := NewEquity(DefaultEquitySchedule())

	// 99_990 * 0.00015 = 14.9985 -> 10; tax 179.982 -> 179
	r := calc.Calculate(99_990, 99_990)

	assert.Equal(t, 10.0+10.0+179.0, r.Fee)
	assert.Equal(t, -199.0, r.Profit)
}

func TestEquity_Win(t *testing.T) {
	calc := NewEquity(EquitySchedule{
		BuyFeeRate:  decimal.Zero,
		SellFeeRate: decimal.Zero,
		SellTaxRate: decimal.Zero,
	})

	r := calc.Calculate(1000, 1100)

	assert.Equal(t, 0.0, r.Fee)
	assert.Equal(t, 100.0, r.Profit)
	assert.InDelta(t, 10.0, r.ReturnPct, 1e-12)
}

func TestCrypto_Calculate(t *testing.T) {
	calc := NewCrypto(DefaultCryptoSchedule())

	r := calc.Calculate(10_000, 11_000)

	assert.InDelta(t, 10.5, r.Fee, 1e-9)
	assert.InDelta(t, 989.5, r.Profit, 1e-9)
	assert.InDelta(t, 9.895, r.ReturnPct, 1e-9)
}

func TestFunc_Adapter(t *testing.T) {
	var calc Calculator = Func(func(entry, exit float64) Result {
		return Result{Fee: 1, Profit: exit - entry - 1}
	})
	assert.Equal(t, 9.0, calc.Calculate(10, 20).Profit)
}

func TestForAssetClass(t *testing.T) {
	eq, err := ForAssetClass(types.AssetEquity)
	require.NoError(t, err)
	assert.IsType(t, &Equity{}, eq)

	cr, err := ForAssetClass(types.AssetCrypto)
	require.NoError(t, err)
	assert.IsType(t, &Crypto{}, cr)

	_, err = ForAssetClass(types.AssetClass(9))
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"zero", "none", "equity", "stock", "crypto", "coin"} {
		calc, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, calc)
	}
	_, err := ByName("futures")
	assert.Error(t, err)
}
