package bybit

import (
	"context"
	"fmt"
	"strings"
	"time"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// KlineProvider serves historical klines as crypto tick series.
// Each kline becomes one tick stamped with its start time in UTC.
type KlineProvider struct {
	src      klineSource
	category string
	interval KlineInterval
	start    *time.Time
	end      *time.Time
}

// NewKlineProvider creates a provider over client for [start, end]; zero times leave a bound open
func NewKlineProvider(client *Client, category string, interval KlineInterval, start, end time.Time) *KlineProvider {
	return newKlineProvider(client, category, interval, start, end)
}

func newKlineProvider(src klineSource, category string, interval KlineInterval, start, end time.Time) *KlineProvider {
	p := &KlineProvider{src: src, category: category, interval: interval}
	if p.category == "" {
		p.category = "spot"
	}
	if p.interval == "" {
		p.interval = Interval1m
	}
	if !start.IsZero() {
		s := start.UTC()
		p.start = &s
	}
	if !end.IsZero() {
		e := end.UTC()
		p.end = &e
	}
	return p
}

// Name returns the name of the data provider
func (p *KlineProvider) Name() string {
	return fmt.Sprintf("Bybit %s %s klines", p.category, string(p.interval))
}

// LoadSeries fetches every kline of symbol in range
func (p *KlineProvider) LoadSeries(ctx context.Context, symbol string) (*types.TickSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	klines, err := fetchRange(ctx, p.src, KlineParams{
		Category: p.category,
		Symbol:   symbol,
		Interval: p.interval,
		Start:    p.start,
		End:      p.end,
	})
	if err != nil {
		return nil, bterrors.NewDataError("bybit_provider", "fetch_klines", fmt.Errorf("%s: %w", symbol, err))
	}
	return types.NewTickSeries(symbol, symbol, types.AssetCrypto, KlinesToTicks(klines)), nil
}

// KlinesToTicks converts oldest-first klines into ticks. The change percent is
// measured against the previous close, or the kline's own open for the first one.
func KlinesToTicks(klines []Kline) []types.TickRecord {
	ticks := make([]types.TickRecord, 0, len(klines))
	prevClose := 0.0
	for _, k := range klines {
		ref := prevClose
		if ref == 0 {
			ref = k.OpenPrice
		}
		pct := 0.0
		if ref != 0 {
			pct = (k.ClosePrice/ref - 1) * 100
		}
		ticks = append(ticks, types.TickRecord{
			Timestamp:   types.FormatStamp(k.StartTime),
			LastPrice:   k.ClosePrice,
			Open:        k.OpenPrice,
			High:        k.HighPrice,
			Low:         k.LowPrice,
			PctChange:   pct,
			ValueTraded: k.Turnover,
		})
		prevClose = k.ClosePrice
	}
	return ticks
}
