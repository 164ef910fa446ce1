package data

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ducminhle1904/tick-backtester/pkg/types"
)

// seriesColumns is the numeric column order written by WriteSeriesCSV
var seriesColumns = []types.Field{
	types.FieldLastPrice, types.FieldOpen, types.FieldHigh, types.FieldLow,
	types.FieldPctChange, types.FieldValueTraded, types.FieldTradeStrength,
	types.FieldAskPrice1, types.FieldBidPrice1, types.FieldAskQty1, types.FieldBidQty1,
	types.FieldAskTotal, types.FieldBidTotal,
}

// WriteSeriesCSV writes series in the DefaultCSVFormat layout so CSVProvider reads it back
func WriteSeriesCSV(w io.Writer, series *types.TickSeries) error {
	out := csv.NewWriter(w)

	header := make([]string, 0, len(seriesColumns)+4)
	header = append(header, DefaultCSVFormat.TimestampCol, DefaultCSVFormat.NameCol)
	for _, f := range seriesColumns {
		header = append(header, f.String())
	}
	header = append(header, DefaultCSVFormat.HaltedCol, DefaultCSVFormat.RoundLotCol)
	if err := out.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := range series.Ticks {
		t := &series.Ticks[i]
		row[0] = strconv.FormatInt(t.Timestamp, 10)
		row[1] = series.Name
		for j, f := range seriesColumns {
			row[j+2] = strconv.FormatFloat(t.Value(f), 'f', -1, 64)
		}
		row[len(row)-2] = flagString(t.Flags.Halted)
		row[len(row)-1] = flagString(t.Flags.RoundLot)
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func flagString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
