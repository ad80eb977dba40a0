// Package sqlsource serves a relational table or a fixed query as a source.
// Table queries are generated with bound values and whitelisted identifiers.
package sqlsource

import (
	"context"
	"database/sql"
	"strings"
	"sync/atomic"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/sources/frame"
	"github.com/gear6io/dataagent/server/sources/infer"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

// SchemaSampleRows bounds the rows read to infer a custom query's schema
const SchemaSampleRows = 10

// Column is a catalog entry for a table column
type Column struct {
	Name string
	Type string
}

// Source is a SQL-backed table or custom query
type Source struct {
	name    string
	dialect Dialect
	table   string
	query   string
	db      *sql.DB
	logger  zerolog.Logger

	columns atomic.Pointer[[]Column]
}

// Option customizes a Source
type Option func(*Source)

// WithDB supplies an open handle instead of opening one from the
// connection string. The source takes ownership and closes it.
func WithDB(db *sql.DB, d Dialect) Option {
	return func(s *Source) {
		s.db = db
		s.dialect = d
	}
}

// WithLogger sets the logger catalog lookups are reported to
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New parses the connection string and opens a lazy connection pool. No
// connection is made until the first query.
func New(name string, config map[string]any, opts ...Option) (*Source, error) {
	o := types.Options(config)
	s := &Source{
		name:   name,
		table:  o.String("table", ""),
		query:  strings.TrimSpace(o.String("query", "")),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.db != nil {
		return s, nil
	}

	conn := o.String("connection_string", "")
	if conn == "" {
		return nil, types.NewValidation(name, "SQL source '%s' requires 'connection_string' in config", name)
	}
	dialect, dsn, err := ParseConnection(conn)
	if err != nil {
		return nil, types.NewValidation(name, "Invalid connection string: %v", err)
	}
	maxOpen, err := o.Int("max_open_conns", 0)
	if err != nil {
		return nil, types.NewValidation(name, "Invalid config: %v", err)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, types.NewValidation(name, "Cannot open %s database: %v", dialect.Name, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	s.db = db
	s.dialect = dialect
	return s, nil
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Type() types.SourceType {
	return types.SourceSQL
}

// Dialect reports the backend the source talks to
func (s *Source) Dialect() Dialect {
	return s.dialect
}

// Validate requires exactly one of table and query. A table must be a plain
// identifier and exist; a query source must be reachable.
func (s *Source) Validate(ctx context.Context) error {
	switch {
	case s.table == "" && s.query == "":
		return types.NewValidation(s.name, "SQL source '%s' requires either 'table' or 'query' in config", s.name)
	case s.table != "" && s.query != "":
		return types.NewValidation(s.name, "SQL source '%s' accepts only one of 'table' or 'query'", s.name)
	case s.query != "":
		if err := s.db.PingContext(ctx); err != nil {
			return types.NewValidation(s.name, "Cannot connect to %s database: %v", s.dialect.Name, err)
		}
		return nil
	}

	if !ValidIdentifier(s.table) {
		return types.NewIdentifierRejected(s.name, s.table, "Invalid table name")
	}
	if _, err := s.tableColumns(ctx); err != nil {
		return errors.AsError(err, types.ErrSourceValidation)
	}
	return nil
}

// Fetch runs the query. With a custom query the statement is sent as is and
// only the limit is honoured, by stopping the scan early.
func (s *Source) Fetch(ctx context.Context, q types.Query) (*types.Result, error) {
	f, err := s.fetchFrame(ctx, q)
	if err != nil {
		return nil, err
	}
	return f.Result(s.name), nil
}

func (s *Source) fetchFrame(ctx context.Context, q types.Query) (*frame.Frame, error) {
	if s.query != "" {
		return s.scan(ctx, Statement{SQL: s.query}, q.Limit)
	}
	if s.table == "" {
		return nil, types.NewValidation(s.name, "SQL source '%s' requires either 'table' or 'query' in config", s.name)
	}

	stmt, err := s.Statement(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, stmt, 0)
}

// Statement renders the SELECT a table fetch would run
func (s *Source) Statement(ctx context.Context, q types.Query) (Statement, error) {
	if !ValidIdentifier(s.table) {
		return Statement{}, types.NewIdentifierRejected(s.name, s.table, "Invalid table name")
	}
	cols, err := s.tableColumns(ctx)
	if err != nil {
		return Statement{}, err
	}

	b := &builder{source: s.name, dialect: s.dialect, table: s.table, columns: make(map[string]bool, len(cols))}
	for _, c := range cols {
		b.columns[c.Name] = true
	}
	stmt, err := b.Select(q)
	if err != nil {
		return Statement{}, errors.AsError(err, types.ErrSourceValidation).AddContext("source", s.name)
	}
	return stmt, nil
}

// Schema uses the catalog and an exact count for tables, reading no rows.
// Custom queries are sampled and inferred.
func (s *Source) Schema(ctx context.Context) (*types.Schema, error) {
	if s.table == "" {
		f, err := s.fetchFrame(ctx, types.Query{Limit: SchemaSampleRows})
		if err != nil {
			return nil, err
		}
		return f.Schema(s.name), nil
	}

	cols, err := s.tableColumns(ctx)
	if err != nil {
		return nil, err
	}
	b := &builder{source: s.name, dialect: s.dialect, table: s.table}
	countSQL, err := b.countStatement()
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to count rows in '%s'", s.table)
	}

	infos := make([]types.ColumnInfo, len(cols))
	for i, c := range cols {
		isDatetime, isNumeric := infer.ClassifySQLType(c.Type)
		infos[i] = types.ColumnInfo{
			Name:         c.Name,
			Dtype:        c.Type,
			SampleValues: []string{},
			IsDatetime:   isDatetime,
			IsNumeric:    isNumeric,
		}
	}
	return &types.Schema{SourceName: s.name, Columns: infos, RowCount: int(count)}, nil
}

// Close releases the connection pool
func (s *Source) Close() error {
	return s.db.Close()
}

// tableColumns introspects the table once. Concurrent first calls may each
// query the catalog; any of the equivalent results may be kept.
func (s *Source) tableColumns(ctx context.Context) ([]Column, error) {
	if cols := s.columns.Load(); cols != nil {
		return *cols, nil
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.columnsSQL, s.dialect.catalogName(s.table))
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to read columns of '%s'", s.table)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var typ sql.NullString
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, types.NewFetch(s.name, err, "Failed to read columns of '%s'", s.table)
		}
		c.Type = typ.String
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to read columns of '%s'", s.table)
	}
	if len(cols) == 0 {
		s.logger.Warn().Str("table", s.table).Msg("Table not found in catalog")
		return nil, types.NewValidation(s.name, "Table '%s' not found", s.table).AddContext("table", s.table)
	}

	s.columns.Store(&cols)
	s.logger.Debug().Str("table", s.table).Int("columns", len(cols)).Msg("Table columns introspected")
	return cols, nil
}

// scan executes stmt and reads at most limit rows (all when limit <= 0).
// Text columns whose values all parse as dates become datetime columns.
func (s *Source) scan(ctx context.Context, stmt Statement, limit int) (*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Query failed").AddContext("sql", stmt.SQL)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, types.NewFetch(s.name, err, "Failed to read result columns")
	}

	var data [][]any
	for rows.Next() {
		if limit > 0 && len(data) >= limit {
			break
		}
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, types.NewFetch(s.name, err, "Failed to read row")
		}
		for i, v := range cells {
			cells[i] = normalizeCell(v)
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewFetch(s.name, err, "Query failed").AddContext("sql", stmt.SQL)
	}
	return frame.FromRows(columns, data).AutoConvertDates(), nil
}

// normalizeCell maps driver-specific values onto the cell types the rest of
// the pipeline understands. Decimal types expose Float64.
func normalizeCell(v any) any {
	if d, ok := v.(interface{ Float64() float64 }); ok {
		return d.Float64()
	}
	return types.NormalizeValue(v)
}
