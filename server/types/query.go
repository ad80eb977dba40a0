package types

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// Row is one record of a tabular result. Values are scalars: string, int64,
// float64, bool, time.Time or nil.
type Row = map[string]any

// Query is the uniform fetch request understood by every source.
type Query struct {
	Columns []string       `json:"columns,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"` // <= 0 means no cap
	OrderBy string         `json:"order_by,omitempty"`
}

// HasLimit reports whether the query caps the number of rows
func (q Query) HasLimit() bool {
	return q.Limit > 0
}

// Order splits OrderBy into column and direction. A leading '-' means descending.
func (q Query) Order() (column string, desc bool) {
	column = strings.TrimSpace(q.OrderBy)
	if strings.HasPrefix(column, "-") {
		return strings.TrimSpace(column[1:]), true
	}
	return column, false
}

// Result is a fresh, caller-owned snapshot of fetched rows.
// Invariants: RowCount == len(Data); every row's keys are a subset of Columns.
type Result struct {
	SourceName string         `json:"source_name"`
	Columns    []string       `json:"columns"`
	Data       []Row          `json:"data"`
	RowCount   int            `json:"row_count"`
	Metadata   map[string]any `json:"metadata"`
}

// NewResult builds a Result and keeps RowCount consistent with rows
func NewResult(source string, columns []string, rows []Row, dtypes map[string]string) *Result {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = []Row{}
	}
	meta := map[string]any{}
	if dtypes != nil {
		meta["dtypes"] = dtypes
	}
	return &Result{
		SourceName: source,
		Columns:    columns,
		Data:       rows,
		RowCount:   len(rows),
		Metadata:   meta,
	}
}

// ColumnInfo describes one column of a source
type ColumnInfo struct {
	Name         string   `json:"name"`
	Dtype        string   `json:"dtype"`
	SampleValues []string `json:"sample_values"`
	IsDatetime   bool     `json:"is_datetime"`
	IsNumeric    bool     `json:"is_numeric"`
}

// Schema describes a source. RowCount is exact for catalog-backed sources and
// the sample size otherwise.
type Schema struct {
	SourceName string       `json:"source_name"`
	Columns    []ColumnInfo `json:"columns"`
	RowCount   int          `json:"row_count"`
}

// ColumnNames returns the schema's column names in order
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Source is the contract every backend driver implements.
type Source interface {
	Name() string
	Type() SourceType
	Fetch(ctx context.Context, q Query) (*Result, error)
	Schema(ctx context.Context) (*Schema, error)
	Validate(ctx context.Context) error
	Close() error
}

// DecodeQuery reads a Query from JSON, keeping numbers as json.Number so
// integer filter values survive untouched.
func DecodeQuery(data []byte) (Query, error) {
	var q Query
	if len(data) == 0 {
		return q, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&q); err != nil {
		return Query{}, NewValidation("", "invalid query: %v", err)
	}
	return q, nil
}
