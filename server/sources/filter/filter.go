// Package filter parses filter expressions and evaluates them against cells.
//
// A filter expression maps a column to either a literal (equality) or an
// operator map such as {"gte": 10, "lt": 20}. Entries are AND-combined.
package filter

import (
	"sort"
	"strings"

	"github.com/gear6io/dataagent/server/types"
)

// Op is a comparison operator
type Op string

const (
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
	OpEq       Op = "eq"
	OpContains Op = "contains"
)

// Ops lists every operator in canonical order
var Ops = []Op{OpGte, OpLte, OpGt, OpLt, OpEq, OpContains}

func (o Op) rank() int {
	for i, op := range Ops {
		if op == o {
			return i
		}
	}
	return len(Ops)
}

// Condition is a single column predicate
type Condition struct {
	Column string
	Op     Op
	Value  any
	// Literal marks a plain-literal filter entry rather than an operator map
	Literal bool
}

// Parse turns a filter expression into conditions ordered by column name and
// then canonical operator order, so equal expressions always produce the same
// sequence. Unknown operator keys are rejected.
func Parse(filters map[string]any) ([]Condition, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	columns := make([]string, 0, len(filters))
	for col := range filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var conds []Condition
	for _, col := range columns {
		ops, ok := asOperatorMap(filters[col])
		if !ok {
			conds = append(conds, Condition{Column: col, Op: OpEq, Value: types.NormalizeValue(filters[col]), Literal: true})
			continue
		}

		colConds := make([]Condition, 0, len(ops))
		for key, val := range ops {
			op := Op(strings.ToLower(key))
			if op.rank() == len(Ops) {
				return nil, types.NewValidation("", "Unsupported filter operator %q on column %q", key, col).
					AddContext("column", col).
					AddContext("operator", key)
			}
			colConds = append(colConds, Condition{Column: col, Op: op, Value: types.NormalizeValue(val)})
		}
		sort.SliceStable(colConds, func(i, j int) bool {
			return colConds[i].Op.rank() < colConds[j].Op.rank()
		})
		conds = append(conds, colConds...)
	}
	return conds, nil
}

func asOperatorMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

// Columns returns the distinct columns referenced by conds in order
func Columns(conds []Condition) []string {
	var cols []string
	seen := map[string]bool{}
	for _, c := range conds {
		if !seen[c.Column] {
			seen[c.Column] = true
			cols = append(cols, c.Column)
		}
	}
	return cols
}

// Match reports whether cell satisfies the condition. Missing cells never match.
func (c Condition) Match(cell any) bool {
	if cell == nil || c.Value == nil {
		return false
	}

	if c.Op == OpContains {
		needle := strings.ToLower(types.FormatValue(c.Value))
		return strings.Contains(strings.ToLower(types.FormatValue(cell)), needle)
	}

	cmp, ok := Compare(cell, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	}
	return false
}

// MatchRow reports whether every condition holds for the row. get returns the
// cell for a column and whether the column exists; conditions on absent
// columns are ignored.
func MatchRow(conds []Condition, get func(column string) (any, bool)) bool {
	for _, c := range conds {
		cell, ok := get(c.Column)
		if !ok {
			continue
		}
		if !c.Match(cell) {
			return false
		}
	}
	return true
}
