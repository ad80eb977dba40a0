package transform

import (
	"strconv"

	"github.com/gear6io/dataagent/server/types"
)

// DefaultWindow is the rolling window used when none is given
const DefaultWindow = 7

// RollingColumn names the column RollingAverage adds
func RollingColumn(column string, window int) string {
	return column + "_rolling_" + strconv.Itoa(window)
}

// RollingAverage returns copies of rows with <column>_rolling_<window>
// added: the mean of the current and previous window-1 values. The value is
// nil until a full window of non-missing values is available.
func RollingAverage(rows []types.Row, column string, window int) ([]types.Row, error) {
	if window < 1 {
		return nil, types.NewTransformInvalid("Window must be a positive integer, got %d", window)
	}
	if err := requireColumns(rows, column); err != nil {
		return nil, err
	}

	values := make([]*float64, len(rows))
	for i, row := range rows {
		v := types.NormalizeValue(row[column])
		if v == nil || isNaN(v) {
			continue
		}
		nums, _, err := numbers(column, []any{v})
		if err != nil {
			return nil, err
		}
		values[i] = &nums[0]
	}

	name := RollingColumn(column, window)
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		copied := make(types.Row, len(row)+1)
		for k, v := range row {
			copied[k] = v
		}
		copied[name] = windowMean(values, i, window)
		out[i] = copied
	}
	return out, nil
}

func windowMean(values []*float64, end, window int) any {
	if end+1 < window {
		return nil
	}
	var total float64
	for _, v := range values[end+1-window : end+1] {
		if v == nil {
			return nil
		}
		total += *v
	}
	return total / float64(window)
}
