package transform

import (
	"strings"
	"time"

	"github.com/gear6io/dataagent/server/sources/infer"
	"github.com/gear6io/dataagent/server/types"
)

// Freq is a resampling period
type Freq string

const (
	Daily     Freq = "D"
	Weekly    Freq = "W"
	Monthly   Freq = "M"
	Quarterly Freq = "Q"
	Yearly    Freq = "Y"
)

// ParseFreq accepts D, W, M, Q and Y in any case, plus the period-end
// spellings ME, QE, YE and A
func ParseFreq(s string) (Freq, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D":
		return Daily, nil
	case "W", "W-SUN":
		return Weekly, nil
	case "M", "ME":
		return Monthly, nil
	case "Q", "QE":
		return Quarterly, nil
	case "Y", "YE", "A":
		return Yearly, nil
	}
	return "", types.NewTransformInvalid("Unsupported frequency %q. Use one of: D, W, M, Q, Y", s)
}

// periodEnd returns the label of the period containing t's calendar date:
// the day itself, the following Sunday, or the last day of the month,
// quarter or year. Labels are midnight UTC.
func (f Freq) periodEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := time.UTC
	switch f {
	case Weekly:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return day.AddDate(0, 0, (7-int(day.Weekday()))%7)
	case Monthly:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	case Quarterly:
		qEnd := ((m-1)/3 + 1) * 3
		return time.Date(y, qEnd+1, 0, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y, 12, 31, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// next returns the label of the period after the one ending at end
func (f Freq) next(end time.Time) time.Time {
	y, m, _ := end.Date()
	loc := end.Location()
	switch f {
	case Weekly:
		return end.AddDate(0, 0, 7)
	case Monthly:
		return time.Date(y, m+2, 0, 0, 0, 0, 0, loc)
	case Quarterly:
		return time.Date(y, m+4, 0, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y+1, 12, 31, 0, 0, 0, 0, loc)
	}
	return end.AddDate(0, 0, 1)
}

// Resample buckets rows by the period of dateColumn and aggregates
// aggColumn per bucket. Every period between the first and last date is
// returned, including empty ones. Rows without a date are skipped.
func Resample(rows []types.Row, dateColumn, freq, aggColumn, fn string) ([]types.Row, error) {
	f, err := ParseFunc(fn)
	if err != nil {
		return nil, err
	}
	period, err := ParseFreq(freq)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(rows, dateColumn, aggColumn); err != nil {
		return nil, err
	}

	buckets := map[time.Time][]any{}
	var first, last time.Time
	seen := false
	for _, row := range rows {
		cell := row[dateColumn]
		if cell == nil {
			continue
		}
		t, ok := infer.ToTime(cell)
		if !ok {
			return nil, types.NewTransformInvalid("Column '%s' has a value that is not a date: %s", dateColumn, types.FormatValue(cell)).
				AddContext("column", dateColumn)
		}
		end := period.periodEnd(t)
		buckets[end] = append(buckets[end], row[aggColumn])
		if !seen || end.Before(first) {
			first = end
		}
		if !seen || end.After(last) {
			last = end
		}
		seen = true
	}

	out := []types.Row{}
	if !seen {
		return out, nil
	}
	for end := first; !end.After(last); end = period.next(end) {
		result, err := reduce(f, aggColumn, buckets[end])
		if err != nil {
			return nil, err
		}
		out = append(out, types.Row{dateColumn: end, aggColumn: result})
	}
	return out, nil
}
