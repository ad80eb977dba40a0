// Package transform reshapes fetched rows: single aggregates, group-bys,
// rolling averages and time resampling. Inputs are never modified.
package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gear6io/dataagent/server/sources/filter"
	"github.com/gear6io/dataagent/server/types"
)

// Func is an aggregation function name
type Func string

const (
	Sum   Func = "sum"
	Mean  Func = "mean"
	Count Func = "count"
	Min   Func = "min"
	Max   Func = "max"
	Std   Func = "std"
)

// Funcs lists every aggregation function
var Funcs = []Func{Sum, Mean, Count, Min, Max, Std}

// ParseFunc resolves an aggregation name; empty means sum
func ParseFunc(name string) (Func, error) {
	if name == "" {
		return Sum, nil
	}
	f := Func(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Funcs {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, len(Funcs))
	for i, known := range Funcs {
		names[i] = string(known)
	}
	return "", types.NewTransformInvalid("Unsupported aggregation function %q. Use one of: %s", name, strings.Join(names, ", "))
}

// AggregateResult is a single aggregate over one column
type AggregateResult struct {
	Column string `json:"column"`
	Func   Func   `json:"func"`
	Result any    `json:"result"`
}

// Aggregate reduces column over all rows. Missing values are skipped; an
// aggregate with no defined value (mean of nothing) is nil.
func Aggregate(rows []types.Row, column, fn string) (*AggregateResult, error) {
	f, err := ParseFunc(fn)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(rows, column); err != nil {
		return nil, err
	}

	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[column]
	}
	result, err := reduce(f, column, values)
	if err != nil {
		return nil, err
	}
	return &AggregateResult{Column: column, Func: f, Result: result}, nil
}

func reduce(f Func, column string, values []any) (any, error) {
	present := make([]any, 0, len(values))
	for _, v := range values {
		if v = types.NormalizeValue(v); v != nil && !isNaN(v) {
			present = append(present, v)
		}
	}

	switch f {
	case Count:
		return int64(len(present)), nil
	case Min, Max:
		if len(present) == 0 {
			return nil, nil
		}
		best := present[0]
		for _, v := range present[1:] {
			if (f == Min && filter.Less(v, best)) || (f == Max && filter.Less(best, v)) {
				best = v
			}
		}
		return best, nil
	}

	nums, allInts, err := numbers(column, present)
	if err != nil {
		return nil, err
	}
	switch f {
	case Sum:
		if allInts {
			var total int64
			for _, v := range present {
				total += v.(int64)
			}
			return total, nil
		}
		var total float64
		for _, n := range nums {
			total += n
		}
		return total, nil
	case Mean:
		if len(nums) == 0 {
			return nil, nil
		}
		return mean(nums), nil
	case Std:
		if len(nums) < 2 {
			return nil, nil
		}
		m := mean(nums)
		var ss float64
		for _, n := range nums {
			ss += (n - m) * (n - m)
		}
		return math.Sqrt(ss / float64(len(nums)-1)), nil
	}
	return nil, types.NewTransformInvalid("Unsupported aggregation function %q", f)
}

// numbers converts non-missing values to floats, failing on anything that
// is not a number
func numbers(column string, values []any) ([]float64, bool, error) {
	out := make([]float64, len(values))
	allInts := true
	for i, v := range values {
		switch n := v.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
			allInts = false
		default:
			return nil, false, types.NewTransformInvalid("Column '%s' is not numeric: found %s", column, types.FormatValue(v)).
				AddContext("column", column)
		}
	}
	return out, allInts, nil
}

func mean(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums))
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// requireColumns checks that every column appears in at least one row
func requireColumns(rows []types.Row, columns ...string) error {
	present := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}
	for _, c := range columns {
		if !present[c] {
			available := make([]string, 0, len(present))
			for k := range present {
				available = append(available, k)
			}
			sort.Strings(available)
			return types.NewTransformInvalid("Column '%s' not found in data. Available: %s", c, joinOrNone(available)).
				AddContext("column", c)
		}
	}
	return nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// groupKey identifies a tuple of cells. Type names keep 1 and "1" apart.
func groupKey(cells []any) string {
	var sb strings.Builder
	for _, c := range cells {
		fmt.Fprintf(&sb, "%T\x00%s\x01", c, types.FormatValue(c))
	}
	return sb.String()
}
