// Package frame is the in-memory table shared by the file, HTTP and SQL
// drivers. Operations never mutate their receiver; they return new frames
// that may share immutable cells with it. Records always builds fresh maps,
// so nothing handed to a caller aliases a cached frame.
package frame

import (
	"sort"

	"github.com/gear6io/dataagent/server/sources/filter"
	"github.com/gear6io/dataagent/server/sources/infer"
	"github.com/gear6io/dataagent/server/types"
)

// Frame is a column-ordered table of scalar cells
type Frame struct {
	Columns []string
	Dtypes  []string
	Rows    [][]any
}

// FromRows builds a frame from typed rows and derives the column dtypes
func FromRows(columns []string, rows [][]any) *Frame {
	f := &Frame{Columns: columns, Rows: rows}
	f.Dtypes = make([]string, len(columns))
	for i := range columns {
		f.Dtypes[i] = infer.DtypeOf(f.column(i))
	}
	return f
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of column, or -1
func (f *Frame) Index(column string) int {
	for i, c := range f.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (f *Frame) column(i int) []any {
	out := make([]any, len(f.Rows))
	for r, row := range f.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

func (f *Frame) derive(rows [][]any) *Frame {
	return &Frame{Columns: f.Columns, Dtypes: f.Dtypes, Rows: rows}
}

func (f *Frame) cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

// Where keeps rows satisfying every condition. Conditions on columns the
// frame does not have are ignored.
func (f *Frame) Where(conds []filter.Condition) *Frame {
	if len(conds) == 0 {
		return f
	}

	idx := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		idx[c] = i
	}

	rows := make([][]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		ok := filter.MatchRow(conds, func(column string) (any, bool) {
			i, found := idx[column]
			if !found {
				return nil, false
			}
			return f.cell(row, i), true
		})
		if ok {
			rows = append(rows, row)
		}
	}
	return f.derive(rows)
}

// OrderBy sorts stably by column with missing values last in either
// direction. An unknown column leaves the order unchanged.
func (f *Frame) OrderBy(column string, desc bool) *Frame {
	i := f.Index(column)
	if i < 0 {
		return f
	}

	rows := make([][]any, len(f.Rows))
	copy(rows, f.Rows)
	sort.SliceStable(rows, func(a, b int) bool {
		va, vb := f.cell(rows[a], i), f.cell(rows[b], i)
		switch {
		case va == nil:
			return false
		case vb == nil:
			return true
		case desc:
			return filter.Less(vb, va)
		default:
			return filter.Less(va, vb)
		}
	})
	return f.derive(rows)
}

// Head keeps the first n rows; n <= 0 keeps everything
func (f *Frame) Head(n int) *Frame {
	if n <= 0 || n >= len(f.Rows) {
		return f
	}
	return f.derive(f.Rows[:n:n])
}

// Select projects onto the requested columns in request order. Unknown and
// repeated names are dropped; an empty request keeps every column.
func (f *Frame) Select(columns []string) *Frame {
	if len(columns) == 0 {
		return f
	}

	var keep []int
	seen := map[string]bool{}
	for _, c := range columns {
		if seen[c] {
			continue
		}
		if i := f.Index(c); i >= 0 {
			seen[c] = true
			keep = append(keep, i)
		}
	}

	out := &Frame{
		Columns: make([]string, len(keep)),
		Dtypes:  make([]string, len(keep)),
		Rows:    make([][]any, len(f.Rows)),
	}
	for j, i := range keep {
		out.Columns[j] = f.Columns[i]
		out.Dtypes[j] = f.Dtypes[i]
	}
	for r, row := range f.Rows {
		projected := make([]any, len(keep))
		for j, i := range keep {
			projected[j] = f.cell(row, i)
		}
		out.Rows[r] = projected
	}
	return out
}

// Apply runs a query: filter and order over the full table, then limit, then
// project. Only a malformed filter expression is an error.
func (f *Frame) Apply(q types.Query) (*Frame, error) {
	conds, err := filter.Parse(q.Filters)
	if err != nil {
		return nil, err
	}
	column, desc := q.Order()
	return f.Where(conds).OrderBy(column, desc).Head(q.Limit).Select(q.Columns), nil
}

// Records materializes rows as fresh maps keyed by column name
func (f *Frame) Records() []types.Row {
	out := make([]types.Row, len(f.Rows))
	for r, row := range f.Rows {
		rec := make(types.Row, len(f.Columns))
		for i, c := range f.Columns {
			rec[c] = f.cell(row, i)
		}
		out[r] = rec
	}
	return out
}

// DtypeMap returns column -> dtype label
func (f *Frame) DtypeMap() map[string]string {
	m := make(map[string]string, len(f.Columns))
	for i, c := range f.Columns {
		m[c] = f.Dtypes[i]
	}
	return m
}

// Result packages the frame as a caller-owned fetch result
func (f *Frame) Result(source string) *types.Result {
	columns := append([]string{}, f.Columns...)
	return types.NewResult(source, columns, f.Records(), f.DtypeMap())
}

// Schema infers column info from the frame; RowCount is the frame length
func (f *Frame) Schema(source string) *types.Schema {
	cols := make([]types.ColumnInfo, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = infer.Describe(c, f.Dtypes[i], f.column(i))
	}
	return &types.Schema{SourceName: source, Columns: cols, RowCount: f.Len()}
}

// ConvertDates turns the named string columns into datetime columns when
// every non-missing cell parses as a date; other columns are left as they
// are. The receiver is not modified.
func (f *Frame) ConvertDates(columns []string) *Frame {
	targets := map[int]bool{}
	for _, c := range columns {
		if i := f.Index(c); i >= 0 {
			targets[i] = true
		}
	}
	return f.convertDates(targets)
}

// AutoConvertDates applies ConvertDates to every string column
func (f *Frame) AutoConvertDates() *Frame {
	targets := map[int]bool{}
	for i, d := range f.Dtypes {
		if d == infer.DtypeString {
			targets[i] = true
		}
	}
	return f.convertDates(targets)
}

func (f *Frame) convertDates(targets map[int]bool) *Frame {
	converted := map[int][]any{}
	for i := range targets {
		if f.Dtypes[i] != infer.DtypeString && f.Dtypes[i] != infer.DtypeObject {
			continue
		}
		if parsed, ok := parseTimes(f.column(i)); ok {
			converted[i] = parsed
		}
	}
	if len(converted) == 0 {
		return f
	}

	out := &Frame{
		Columns: f.Columns,
		Dtypes:  append([]string{}, f.Dtypes...),
		Rows:    make([][]any, len(f.Rows)),
	}
	for i := range converted {
		out.Dtypes[i] = infer.DtypeDatetime
	}
	for r, row := range f.Rows {
		nr := make([]any, len(f.Columns))
		copy(nr, row)
		for i, vals := range converted {
			nr[i] = vals[r]
		}
		out.Rows[r] = nr
	}
	return out
}

func parseTimes(values []any) ([]any, bool) {
	out := make([]any, len(values))
	seen := false
	for r, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		t, ok := infer.ParseTime(s)
		if !ok {
			return nil, false
		}
		out[r] = t
		seen = true
	}
	return out, seen
}
