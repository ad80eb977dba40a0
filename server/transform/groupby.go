package transform

import (
	"sort"

	"github.com/gear6io/dataagent/server/sources/filter"
	"github.com/gear6io/dataagent/server/types"
)

type group struct {
	key    []any
	values []any
}

// GroupBy aggregates aggColumn per distinct combination of groupColumns.
// Rows with a missing group value are dropped; groups come back sorted by
// their key.
func GroupBy(rows []types.Row, groupColumns []string, aggColumn, fn string) ([]types.Row, error) {
	f, err := ParseFunc(fn)
	if err != nil {
		return nil, err
	}
	if len(groupColumns) == 0 {
		return nil, types.NewTransformInvalid("At least one group column is required")
	}
	if err := requireColumns(rows, append(append([]string{}, groupColumns...), aggColumn)...); err != nil {
		return nil, err
	}

	groups := map[string]*group{}
	var order []*group
rows:
	for _, row := range rows {
		key := make([]any, len(groupColumns))
		for i, c := range groupColumns {
			v := types.NormalizeValue(row[c])
			if v == nil {
				continue rows
			}
			key[i] = v
		}
		id := groupKey(key)
		g, ok := groups[id]
		if !ok {
			g = &group{key: key}
			groups[id] = g
			order = append(order, g)
		}
		g.values = append(g.values, row[aggColumn])
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].key, order[j].key
		for k := range a {
			if filter.Less(a[k], b[k]) {
				return true
			}
			if filter.Less(b[k], a[k]) {
				return false
			}
		}
		return false
	})

	out := make([]types.Row, 0, len(order))
	for _, g := range order {
		result, err := reduce(f, aggColumn, g.values)
		if err != nil {
			return nil, err
		}
		row := make(types.Row, len(groupColumns)+1)
		for i, c := range groupColumns {
			row[c] = g.key[i]
		}
		row[aggColumn] = result
		out = append(out, row)
	}
	return out, nil
}
