package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimestampLayout is how datetime cells are rendered as text
const TimestampLayout = "2006-01-02 15:04:05"

// FormatValue renders a cell value as text. nil renders as "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case json.Number:
		return x.String()
	case time.Time:
		if x.Nanosecond() != 0 {
			return x.Format(TimestampLayout + ".000000")
		}
		return x.Format(TimestampLayout)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == 'e' || s[i] == 'N' || s[i] == 'I' {
			return s
		}
	}
	return s + ".0"
}

// NormalizeValue maps decoded wire values onto the scalar cell types:
// json.Number becomes int64 or float64, other ints widen to int64, float32 to float64.
// Unsigned values beyond MaxInt64 become float64.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint:
		return fromUint(uint64(x))
	case uint32:
		return int64(x)
	case uint64:
		return fromUint(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

func fromUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}
