package filter

import (
	"cmp"
	"strconv"
	"strings"
	"time"

	"github.com/gear6io/dataagent/server/sources/infer"
	"github.com/gear6io/dataagent/server/types"
)

// Compare orders a cell against a filter value. Numbers compare numerically
// (numeric strings are coerced against numeric cells), times chronologically,
// strings lexicographically. ok is false when the two are not comparable.
func Compare(cell, value any) (int, bool) {
	cell = types.NormalizeValue(cell)
	value = types.NormalizeValue(value)

	switch c := cell.(type) {
	case int64, float64:
		return cmpNumber(c, value)

	case time.Time:
		vt, ok := infer.ToTime(value)
		if !ok {
			return 0, false
		}
		return c.Compare(vt), true

	case bool:
		vb, ok := toBool(value)
		if !ok {
			return 0, false
		}
		return cmpBool(c, vb), true

	case string:
		switch v := value.(type) {
		case string:
			return strings.Compare(c, v), true
		case int64, float64:
			n, ok := cmpNumber(v, c)
			return -n, ok
		case time.Time:
			ct, ok := infer.ParseTime(c)
			if !ok {
				return 0, false
			}
			return ct.Compare(v), true
		case bool:
			cb, ok := toBool(c)
			if !ok {
				return 0, false
			}
			return cmpBool(cb, v), true
		}
	}
	return 0, false
}

// Less orders two cells for sorting. Cells of unrelated kinds fall back to
// their text form so the ordering stays total.
func Less(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c < 0
	}
	return types.FormatValue(a) < types.FormatValue(b)
}

// cmpNumber compares a numeric cell with a number or numeric string. Two
// integers compare exactly, beyond the 2^53 float64 mantissa.
func cmpNumber(cell, value any) (int, bool) {
	if ci, ok := cell.(int64); ok {
		if vi, ok := toInt(value); ok {
			return cmp.Compare(ci, vi), true
		}
	}
	cf, _ := toFloat(cell)
	vf, ok := toFloat(value)
	if !ok {
		return 0, false
	}
	return cmpFloat(cf, vf), true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
