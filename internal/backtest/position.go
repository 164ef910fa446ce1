package backtest

import (
	"math"

	"github.com/ducminhle1904/tick-backtester/internal/fees"
	"github.com/ducminhle1904/tick-backtester/internal/strategy"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// Position is the single-position state machine of one instrument:
// Flat -> Holding -> Flat. Closing happens inside Close and is never
// observable as a state of its own.
type Position struct {
	bet  float64
	fees fees.Calculator

	holding        bool
	entryIndex     int
	entryTimestamp int64
	entryPrice     float64
	quantity       float64
	entryAmount    float64
	returnPct      float64
	bestReturnPct  float64
	worstReturnPct float64
	splitCount     int
	signalTag      string
	fills          []AddBuy
}

// NewPosition creates a flat position sizing every fill with bet
func NewPosition(bet float64, calc fees.Calculator) *Position {
	if calc == nil {
		calc = fees.Zero
	}
	return &Position{bet: bet, fees: calc}
}

// Holding reports whether a position is open
func (p *Position) Holding() bool { return p.holding }

// Exposure returns the open count and capital currently deployed
func (p *Position) Exposure() (int, float64) {
	if !p.holding {
		return 0, 0
	}
	return 1, p.entryAmount
}

// unitsFor returns floor(bet/price), 0 for non-positive prices
func (p *Position) unitsFor(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor(p.bet / price)
}

// Open transitions Flat -> Holding at price. It reports false, leaving the
// position flat, when the bet buys zero units.
func (p *Position) Open(i int, ts int64, price float64, tag string) bool {
	qty := p.unitsFor(price)
	if p.holding || qty == 0 {
		return false
	}
	if tag == "" {
		tag = DefaultSignalTag
	}
	p.holding = true
	p.entryIndex = i
	p.entryTimestamp = ts
	p.entryPrice = price
	p.quantity = qty
	p.entryAmount = qty * price
	p.returnPct = 0
	p.bestReturnPct = 0
	p.worstReturnPct = 0
	p.splitCount = 0
	p.signalTag = tag
	p.fills = append(p.fills[:0], AddBuy{Timestamp: ts, Price: price})
	return true
}

// AddBuy adds another bet-sized fill while holding and re-averages the entry
// price. It reports false when flat, over the split limit or sized to zero.
func (p *Position) AddBuy(ts int64, price float64, maxSplits int) bool {
	if !p.holding || p.splitCount >= maxSplits {
		return false
	}
	qty := p.unitsFor(price)
	if qty == 0 {
		return false
	}
	p.quantity += qty
	p.entryAmount += qty * price
	p.entryPrice = p.entryAmount / p.quantity
	p.splitCount++
	p.fills = append(p.fills, AddBuy{Timestamp: ts, Price: price})
	p.Mark(price)
	return true
}

// Mark revalues the holding at price and tracks the best and worst return
func (p *Position) Mark(price float64) {
	if !p.holding {
		return
	}
	p.returnPct = p.fees.Calculate(p.entryAmount, p.quantity*price).ReturnPct
	if p.returnPct > p.bestReturnPct {
		p.bestReturnPct = p.returnPct
	}
	if p.returnPct < p.worstReturnPct {
		p.worstReturnPct = p.returnPct
	}
}

// Close transitions Holding -> Flat and returns the finished trade
func (p *Position) Close(ts int64, price float64, reason int) TradeRecord {
	exitAmount := p.quantity * price
	res := p.fees.Calculate(p.entryAmount, exitAmount)
	rec := TradeRecord{
		SignalTag:      p.signalTag,
		EntryTimestamp: p.entryTimestamp,
		ExitTimestamp:  ts,
		HoldingTimeSec: types.SecondsBetween(p.entryTimestamp, ts),
		EntryPrice:     p.entryPrice,
		ExitPrice:      price,
		Quantity:       p.quantity,
		EntryAmount:    p.entryAmount,
		ExitAmount:     exitAmount,
		FeeAmount:      res.Fee,
		ProfitAmount:   res.Profit,
		ReturnPct:      res.ReturnPct,
		SellReasonCode: reason,
		AddBuyLog:      formatAddBuys(p.fills),
		IsValid:        p.quantity > 0 && price > 0,
	}
	p.reset()
	return rec
}

func (p *Position) reset() {
	p.holding = false
	p.entryIndex = 0
	p.entryTimestamp = 0
	p.entryPrice = 0
	p.quantity = 0
	p.entryAmount = 0
	p.returnPct = 0
	p.bestReturnPct = 0
	p.worstReturnPct = 0
	p.splitCount = 0
	p.signalTag = ""
	p.fills = p.fills[:0]
}

// View exposes the position to rules
func (p *Position) View() strategy.PositionView {
	if !p.holding {
		return strategy.PositionView{}
	}
	return strategy.PositionView{
		Holding:        true,
		EntryIndex:     p.entryIndex,
		EntryTimestamp: p.entryTimestamp,
		EntryPrice:     p.entryPrice,
		Quantity:       p.quantity,
		ReturnPct:      p.returnPct,
		BestReturnPct:  p.bestReturnPct,
		WorstReturnPct: p.worstReturnPct,
		SplitCount:     p.splitCount,
	}
}
