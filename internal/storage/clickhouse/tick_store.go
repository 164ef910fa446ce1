package clickhouse

import (
	"context"
	"fmt"

	bterrors "github.com/ducminhle1904/tick-backtester/internal/errors"
	"github.com/ducminhle1904/tick-backtester/internal/storage"
	"github.com/ducminhle1904/tick-backtester/pkg/data"
	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// TickStore keeps instrument tick histories in ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ data.TickProvider = (*TickStore)(nil)

// chRows is the subset of driver.Rows the scanners use.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

const tickColumns = `
	code, name, asset_class, ts, seq,
	price, open, high, low, pct, value, strength,
	ask1, bid1, askqty1, bidqty1, asktotal, bidtotal,
	halted, round_lot
`

// Name returns the name of the data provider.
func (s *TickStore) Name() string {
	return "ClickHouse tick store"
}

// InsertSeries appends a whole series. Fails with ErrDuplicateKey when the
// instrument already has ticks stored.
func (s *TickStore) InsertSeries(ctx context.Context, series *types.TickSeries) error {
	if series.Len() == 0 {
		return nil
	}

	n, err := s.count(ctx, series.Code)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if n > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO ticks ("+tickColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, t := range series.Ticks {
		err = batch.Append(
			series.Code, series.Name, series.Class.String(), uint64(t.Timestamp), uint32(i),
			t.LastPrice, t.Open, t.High, t.Low, t.PctChange, t.ValueTraded, t.TradeStrength,
			t.Book.AskPrice1, t.Book.BidPrice1, t.Book.AskQty1, t.Book.BidQty1, t.Book.AskTotal, t.Book.BidTotal,
			boolToUInt8(t.Flags.Halted), boolToUInt8(t.Flags.RoundLot),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// LoadSeries retrieves all ticks of code ordered by timestamp. An unknown
// code yields an empty series.
func (s *TickStore) LoadSeries(ctx context.Context, code string) (*types.TickSeries, error) {
	query := `SELECT ` + tickColumns + `
		FROM ticks
		WHERE code = ?
		ORDER BY ts ASC, seq ASC
	`
	rows, err := s.conn.Query(ctx, query, code)
	if err != nil {
		return nil, bterrors.NewStorageError("clickhouse_tick_store", "load_series", fmt.Errorf("query ticks: %w", err))
	}
	defer rows.Close()

	series, err := scanSeries(rows, code)
	if err != nil {
		return nil, bterrors.NewStorageError("clickhouse_tick_store", "load_series", err)
	}
	return series, nil
}

// LoadRange retrieves ticks of code dated within [startDate, endDate] (YYYYMMDD, inclusive).
func (s *TickStore) LoadRange(ctx context.Context, code string, startDate, endDate int64) (*types.TickSeries, error) {
	query := `SELECT ` + tickColumns + `
		FROM ticks
		WHERE code = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, seq ASC
	`
	rows, err := s.conn.Query(ctx, query, code, uint64(startDate*1_000_000), uint64(endDate*1_000_000+235959))
	if err != nil {
		return nil, fmt.Errorf("query ticks by range: %w", err)
	}
	defer rows.Close()

	return scanSeries(rows, code)
}

// Codes lists every stored instrument code.
func (s *TickStore) Codes(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT code FROM ticks ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codes: %w", err)
	}
	return codes, nil
}

func (s *TickStore) count(ctx context.Context, code string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM ticks WHERE code = ?`, code).Scan(&count)
	return count, err
}

// scanSeries scans tick rows of one instrument.
func scanSeries(rows chRows, code string) (*types.TickSeries, error) {
	series := types.NewTickSeries(code, code, types.AssetEquity, nil)

	for rows.Next() {
		var (
			t              types.TickRecord
			rowCode, name  string
			class          string
			ts             uint64
			seq            uint32
			halted, roundL uint8
		)
		err := rows.Scan(
			&rowCode, &name, &class, &ts, &seq,
			&t.LastPrice, &t.Open, &t.High, &t.Low, &t.PctChange, &t.ValueTraded, &t.TradeStrength,
			&t.Book.AskPrice1, &t.Book.BidPrice1, &t.Book.AskQty1, &t.Book.BidQty1, &t.Book.AskTotal, &t.Book.BidTotal,
			&halted, &roundL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t.Timestamp = int64(ts)
		t.Flags.Halted = halted != 0
		t.Flags.RoundLot = roundL != 0

		if len(series.Ticks) == 0 {
			series.Name = name
			if c, err := types.ParseAssetClass(class); err == nil {
				series.Class = c
			}
		}
		series.Ticks = append(series.Ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	return series, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
