package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

// maxKlineLimit is the page size cap of /v5/market/kline
const maxKlineLimit = 1000

// ParseInterval converts "5m", "1h", "1d" or a bare minute count into a KlineInterval
func ParseInterval(s string) (KlineInterval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Interval1m, nil
	}
	switch s {
	case "d", "1d":
		return Interval1d, nil
	case "w", "1w":
		return Interval1w, nil
	}
	if _, err := strconv.Atoi(s); err == nil {
		return validInterval(KlineInterval(s))
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return "", fmt.Errorf("invalid interval %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return validInterval(KlineInterval(strconv.Itoa(num)))
	case 'h':
		return validInterval(KlineInterval(strconv.Itoa(num * 60)))
	}
	return "", fmt.Errorf("invalid interval %q", s)
}

func validInterval(iv KlineInterval) (KlineInterval, error) {
	switch iv {
	case Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
		Interval1h, Interval2h, Interval4h, Interval6h, Interval12h:
		return iv, nil
	}
	return "", fmt.Errorf("unsupported interval %q", string(iv))
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string        // "spot", "linear", "inverse"
	Symbol   string        // Trading pair symbol (e.g., "BTCUSDT")
	Interval KlineInterval // Time interval
	Start    *time.Time    // Start time (optional)
	End      *time.Time    // End time (optional)
	Limit    int           // Number of records to return (max 1000, default 200)
}

// GetKlines fetches one page of kline data from Bybit, newest first
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Category == "" {
		params.Category = "spot"
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > maxKlineLimit {
		params.Limit = maxKlineLimit
	}

	reqParams := map[string]interface{}{
		"category": params.Category,
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var klines []Kline
	err := retryWithConfig(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
		if err != nil {
			return err
		}
		klines, err = parseKlineResponse(result)
		return err
	})
	if err != nil {
		return nil, WrapAPIError("get klines", err)
	}
	return klines, nil
}

// parseKlineResponse parses the API response into Kline structs
func parseKlineResponse(response interface{}) ([]Kline, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	var klineResult KlineResult
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	klines := make([]Kline, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 7 {
			continue
		}
		// [startTime, openPrice, highPrice, lowPrice, closePrice, volume, turnover]
		klines = append(klines, Kline{
			StartTime:  parseTimestamp(item[0]),
			OpenPrice:  parseFloat64(item[1]),
			HighPrice:  parseFloat64(item[2]),
			LowPrice:   parseFloat64(item[3]),
			ClosePrice: parseFloat64(item[4]),
			Volume:     parseFloat64(item[5]),
			Turnover:   parseFloat64(item[6]),
		})
	}
	return klines, nil
}

// klineSource fetches one page of klines
type klineSource interface {
	GetKlines(ctx context.Context, params KlineParams) ([]Kline, error)
}

// fetchRange pages backwards from end to start and returns klines oldest first
func fetchRange(ctx context.Context, src klineSource, params KlineParams) ([]Kline, error) {
	params.Limit = maxKlineLimit
	var all []Kline
	end := params.End
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := params
		page.End = end
		batch, err := src.GetKlines(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		oldest := batch[0].StartTime
		for _, k := range batch[1:] {
			if k.StartTime.Before(oldest) {
				oldest = k.StartTime
			}
		}
		if len(batch) < maxKlineLimit || (params.Start != nil && !oldest.After(*params.Start)) {
			break
		}
		next := oldest.Add(-time.Millisecond)
		end = &next
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	deduped := all[:0]
	for _, k := range all {
		if len(deduped) > 0 && k.StartTime.Equal(deduped[len(deduped)-1].StartTime) {
			continue
		}
		if params.Start != nil && k.StartTime.Before(*params.Start) {
			continue
		}
		deduped = append(deduped, k)
	}
	return deduped, nil
}
