package frame

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ScalarColumn names the column used when a record is a bare value rather
// than an object.
const ScalarColumn = "value"

// ExtractRecords locates the record list inside a JSON document.
//
// Without a path: a top-level array is used directly, else a "data" or
// "results" key, else the object itself is a single record. With a dot path:
// a missing path yields no records and a non-array value is a single record.
func ExtractRecords(doc gjson.Result, dataPath string) []gjson.Result {
	if dataPath == "" {
		switch {
		case doc.IsArray():
			return doc.Array()
		case doc.IsObject():
			for _, key := range []string{"data", "results"} {
				if v := doc.Get(escapeKey(key)); v.Exists() {
					return asRecords(v)
				}
			}
			return []gjson.Result{doc}
		}
		return nil
	}

	v := doc.Get(PathExpression(dataPath))
	if !v.Exists() {
		return nil
	}
	return asRecords(v)
}

func asRecords(v gjson.Result) []gjson.Result {
	if v.IsArray() {
		return v.Array()
	}
	if v.Type == gjson.Null {
		return nil
	}
	return []gjson.Result{v}
}

// PathExpression converts a plain dot path ("data.items") into a gjson path,
// escaping characters gjson would otherwise interpret.
func PathExpression(dataPath string) string {
	parts := strings.Split(dataPath, ".")
	for i, p := range parts {
		parts[i] = escapeKey(p)
	}
	return strings.Join(parts, ".")
}

func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '[', ']', '{', '}', ',', '(', ')', ':', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FromRecords builds a frame from JSON records. Columns appear in first-seen
// order across records; nested objects and arrays are kept as raw JSON text.
func FromRecords(records []gjson.Result) *Frame {
	var columns []string
	index := map[string]int{}
	rows := make([][]any, 0, len(records))

	for _, rec := range records {
		row := make([]any, len(columns))
		set := func(key string, v any) {
			i, ok := index[key]
			if !ok {
				i = len(columns)
				index[key] = i
				columns = append(columns, key)
			}
			for len(row) <= i {
				row = append(row, nil)
			}
			row[i] = v
		}

		if rec.IsObject() {
			rec.ForEach(func(key, value gjson.Result) bool {
				set(key.String(), Scalar(value))
				return true
			})
		} else {
			set(ScalarColumn, Scalar(rec))
		}
		rows = append(rows, row)
	}

	for r := range rows {
		for len(rows[r]) < len(columns) {
			rows[r] = append(rows[r], nil)
		}
	}
	if columns == nil {
		columns = []string{}
	}
	return FromRows(columns, rows)
}

// Scalar converts a JSON value to a cell. Integral numbers become int64,
// other numbers float64; objects and arrays stay raw JSON text.
func Scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return v.Str
	case gjson.Number:
		raw := v.Raw
		if !strings.ContainsAny(raw, ".eE") {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Num
	case gjson.JSON:
		return v.Raw
	}
	return nil
}

// ReadJSON parses a JSON document and extracts its records
func ReadJSON(data []byte, dataPath string) (*Frame, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return FromRecords(ExtractRecords(gjson.ParseBytes(data), dataPath)), nil
}

// ReadJSONLines parses one JSON value per non-blank line
func ReadJSONLines(data []byte) (*Frame, error) {
	var records []gjson.Result
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}
		records = append(records, gjson.Parse(string(text)))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}
