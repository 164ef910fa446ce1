package types

import (
	"fmt"
	"time"
)

const intradayThreshold = 10_000_000_000 // smallest 11-digit value

// IsIntraday reports whether ts carries a time-of-day (YYYYMMDDhhmmss)
func IsIntraday(ts int64) bool {
	return ts >= intradayThreshold
}

// DateOf returns the 8-digit YYYYMMDD prefix of a timestamp
func DateOf(ts int64) int64 {
	if IsIntraday(ts) {
		return ts / 1_000_000
	}
	return ts
}

// TimeOfDay returns hhmmss, or -1 for daily timestamps
func TimeOfDay(ts int64) int {
	if !IsIntraday(ts) {
		return -1
	}
	return int(ts % 1_000_000)
}

// ParseStamp converts an integer timestamp into a UTC time.Time
func ParseStamp(ts int64) (time.Time, error) {
	date := DateOf(ts)
	year := int(date / 10000)
	month := int(date / 100 % 100)
	day := int(date % 100)
	hour, minute, second := 0, 0, 0
	if IsIntraday(ts) {
		tod := ts % 1_000_000
		hour = int(tod / 10000)
		minute = int(tod / 100 % 100)
		second = int(tod % 100)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("invalid timestamp %d", ts)
	}
	return t, nil
}

// FormatStamp renders t as a 14-digit YYYYMMDDhhmmss integer
func FormatStamp(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year())*10_000_000_000 +
		int64(t.Month())*100_000_000 +
		int64(t.Day())*1_000_000 +
		int64(t.Hour())*10_000 +
		int64(t.Minute())*100 +
		int64(t.Second())
}

// SecondsBetween returns the wall-clock seconds from a to b.
// Unparseable timestamps yield 0.
func SecondsBetween(a, b int64) int64 {
	ta, err := ParseStamp(a)
	if err != nil {
		return 0
	}
	tb, err := ParseStamp(b)
	if err != nil {
		return 0
	}
	return int64(tb.Sub(ta) / time.Second)
}

// Dates returns the calendar dates of ordered ticks, each once
func Dates(ticks []TickRecord) []int64 {
	var dates []int64
	for i := range ticks {
		d := DateOf(ticks[i].Timestamp)
		if len(dates) == 0 || dates[len(dates)-1] != d {
			dates = append(dates, d)
		}
	}
	return dates
}
