package bybit

import (
	"context"
	"errors"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    KlineInterval
		wantErr bool
	}{
		{"", Interval1m, false},
		{"1m", Interval1m, false},
		{"5", Interval5m, false},
		{"15m", Interval15m, false},
		{"1h", Interval1h, false},
		{"4h", Interval4h, false},
		{"1d", Interval1d, false},
		{"W", Interval1w, false},
		{"7m", "", true},
		{"xh", "", true},
		{"3y", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKlineResponse(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		RetMsg:  "OK",
		Result: map[string]interface{}{
			"symbol":   "BTCUSDT",
			"category": "spot",
			"list": [][]string{
				{"1704067260000", "101", "103", "100", "102", "5", "510"},
				{"1704067200000", "100", "101", "99", "101", "4", "400"},
				{"bad"},
			},
		},
	}
	klines, err := parseKlineResponse(resp)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), klines[0].StartTime)
	assert.Equal(t, 102.0, klines[0].ClosePrice)
	assert.Equal(t, 510.0, klines[0].Turnover)

	_, err = parseKlineResponse(&bybit_api.ServerResponse{RetCode: ErrCodeRateLimitExceeded, RetMsg: "too many"})
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.True(t, IsRetryableError(err))

	_, err = parseKlineResponse("nope")
	assert.Error(t, err)
}

type pagedSource struct {
	klines []Kline // newest first
	calls  int
}

func (s *pagedSource) GetKlines(_ context.Context, params KlineParams) ([]Kline, error) {
	s.calls++
	var page []Kline
	for _, k := range s.klines {
		if params.End != nil && k.StartTime.After(*params.End) {
			continue
		}
		if params.Start != nil && k.StartTime.Before(*params.Start) {
			continue
		}
		page = append(page, k)
		if len(page) == params.Limit {
			break
		}
	}
	return page, nil
}

func minuteKlines(start time.Time, n int) []Kline {
	out := make([]Kline, n)
	for i := 0; i < n; i++ {
		price := float64(100 + i)
		// newest first, as the API returns them
		out[n-1-i] = Kline{
			StartTime:  start.Add(time.Duration(i) * time.Minute),
			OpenPrice:  price,
			HighPrice:  price,
			LowPrice:   price,
			ClosePrice: price,
			Turnover:   1,
		}
	}
	return out
}

func TestFetchRange_Pages(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &pagedSource{klines: minuteKlines(start, 2500)}
	end := start.Add(3000 * time.Minute)

	klines, err := fetchRange(context.Background(), src, KlineParams{Symbol: "BTCUSDT", Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, klines, 2500)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, start, klines[0].StartTime)
	for i := 1; i < len(klines); i++ {
		require.True(t, klines[i].StartTime.After(klines[i-1].StartTime))
	}
}

func TestFetchRange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetchRange(ctx, &pagedSource{}, KlineParams{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKlineProvider_LoadSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 58, 0, 0, time.UTC)
	src := &pagedSource{klines: minuteKlines(start, 4)}
	p := newKlineProvider(src, "", "", time.Time{}, time.Time{})
	assert.Equal(t, "Bybit spot 1 klines", p.Name())

	series, err := p.LoadSeries(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", series.Code)
	assert.Equal(t, types.AssetCrypto, series.Class)
	require.Equal(t, 4, series.Len())
	assert.Equal(t, int64(20240101235800), series.Ticks[0].Timestamp)
	assert.Equal(t, int64(20240102000100), series.Ticks[3].Timestamp)
	assert.NoError(t, series.Validate())
}

type failingSource struct{}

func (failingSource) GetKlines(context.Context, KlineParams) ([]Kline, error) {
	return nil, errors.New("boom")
}

func TestKlineProvider_Error(t *testing.T) {
	p := newKlineProvider(failingSource{}, "linear", Interval5m, time.Time{}, time.Time{})
	_, err := p.LoadSeries(context.Background(), "ETHUSDT")
	assert.ErrorContains(t, err, "ETHUSDT")
}

func TestKlinesToTicks(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := KlinesToTicks([]Kline{
		{StartTime: ts, OpenPrice: 100, ClosePrice: 110, Turnover: 5},
		{StartTime: ts.Add(time.Minute), OpenPrice: 110, ClosePrice: 99},
	})
	require.Len(t, ticks, 2)
	assert.InDelta(t, 10.0, ticks[0].PctChange, 1e-9)
	assert.InDelta(t, -10.0, ticks[1].PctChange, 1e-9)
	assert.Equal(t, 5.0, ticks[0].ValueTraded)
	assert.Equal(t, 110.0, ticks[0].LastPrice)
}

func TestRetryWithConfig(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	calls := 0
	err := retryWithConfig(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return NewBybitError(ErrCodeRateLimitExceeded, "slow down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithConfig(context.Background(), cfg, func() error {
		calls++
		return NewBybitError(ErrCodeSymbolNotFound, "nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors stop immediately")
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, calculateDelay(0, cfg))
	assert.Equal(t, 2*time.Second, calculateDelay(1, cfg))
	assert.Equal(t, 3*time.Second, calculateDelay(5, cfg))
}
