package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gear6io/dataagent/server/sources/infer"
)

// ReadCSV loads a delimited text table with a header row. Short rows are
// padded with missing cells; rows longer than the header are an error.
// Column types are inferred per column.
func ReadCSV(r io.Reader, delimiter rune) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return FromRows([]string{}, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := headerNames(header)

	var raw [][]string
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(columns) > 1 {
			continue
		}
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(columns), len(rec))
		}
		for len(rec) < len(columns) {
			rec = append(rec, "")
		}
		raw = append(raw, rec)
	}

	f := &Frame{
		Columns: columns,
		Dtypes:  make([]string, len(columns)),
		Rows:    make([][]any, len(raw)),
	}
	for r := range raw {
		f.Rows[r] = make([]any, len(columns))
	}

	cells := make([]string, len(raw))
	for c := range columns {
		for r, rec := range raw {
			cells[r] = rec[c]
		}
		dtype, values := infer.ParseColumn(cells)
		f.Dtypes[c] = dtype
		for r, v := range values {
			f.Rows[r][c] = v
		}
	}
	return f, nil
}

// headerNames trims the header, fills blanks and de-duplicates repeats as
// "name.1", "name.2".
func headerNames(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
