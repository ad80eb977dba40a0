package sqlsource

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T, d Dialect, config map[string]any) (*Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s, err := New("sales", config, WithDB(db, d))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func expectColumns(mock sqlmock.Sqlmock, d Dialect) {
	mock.ExpectQuery(d.columnsSQL).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("date", "TEXT").
			AddRow("value", "INTEGER").
			AddRow("category", "TEXT"))
}

func TestStatementGolden(t *testing.T) {
	query := types.Query{
		Columns: []string{"category", "value"},
		Filters: map[string]any{
			"value":    map[string]any{"lt": 100, "gte": 10},
			"category": "A",
		},
		OrderBy: "-value",
		Limit:   5,
	}

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "SELECT category, value FROM sales WHERE category = ? AND value >= ? AND value < ? ORDER BY value DESC LIMIT 5"},
		{DuckDB, "SELECT category, value FROM sales WHERE category = ? AND value >= ? AND value < ? ORDER BY value DESC LIMIT 5"},
		{Postgres, "SELECT category, value FROM sales WHERE category = $1 AND value >= $2 AND value < $3 ORDER BY value DESC LIMIT 5"},
		{SQLServer, "SELECT TOP (5) category, value FROM sales WHERE category = @p1 AND value >= @p2 AND value < @p3 ORDER BY value DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			s, mock := newMock(t, tt.dialect, map[string]any{"table": "sales"})
			expectColumns(mock, tt.dialect)

			stmt, err := s.Statement(context.Background(), query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
			assert.Equal(t, []any{"A", int64(10), int64(100)}, stmt.Args)

			// same query, same text
			again, err := s.Statement(context.Background(), query)
			require.NoError(t, err)
			assert.Equal(t, stmt, again)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStatementContains(t *testing.T) {
	s, mock := newMock(t, SQLite, map[string]any{"table": "sales"})
	expectColumns(mock, SQLite)

	stmt, err := s.Statement(context.Background(), types.Query{
		Filters: map[string]any{"category": map[string]any{"contains": "50%_OFF"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM sales WHERE LOWER(category) LIKE ? ESCAPE '\'`, stmt.SQL)
	assert.Equal(t, []any{`%50\%\_off%`}, stmt.Args)

	ms, mock := newMock(t, SQLServer, map[string]any{"table": "sales"})
	expectColumns(mock, SQLServer)
	stmt, err = ms.Statement(context.Background(), types.Query{
		Filters: map[string]any{"category": map[string]any{"contains": "[x]"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{`%\[x]%`}, stmt.Args)
}

func TestStatementRejectsIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		query types.Query
		want  string
	}{
		{"unknown column", types.Query{Columns: []string{"price"}}, "Column 'price' not found"},
		{"injected column", types.Query{Columns: []string{"value; DROP TABLE sales"}}, "Invalid column name"},
		{"unknown filter column", types.Query{Filters: map[string]any{"price": 1}}, "not found"},
		{"unknown order column", types.Query{OrderBy: "-price"}, "not found"},
		{"injected order", types.Query{OrderBy: "value DESC; --"}, "Invalid column name"},
		{"bad operator", types.Query{Filters: map[string]any{"value": map[string]any{"ne": 1}}}, "Unsupported filter operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMock(t, SQLite, map[string]any{"table": "sales"})
			expectColumns(mock, SQLite)

			_, err := s.Fetch(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
			// nothing but the catalog lookup reached the database
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestColumnsIntrospectedOnce(t *testing.T) {
	s, mock := newMock(t, SQLite, map[string]any{"table": "sales"})
	expectColumns(mock, SQLite)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT value FROM sales LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(10)))
	}

	for i := 0; i < 2; i++ {
		res, err := s.Fetch(context.Background(), types.Query{Columns: []string{"value"}, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []types.Row{{"value": int64(10)}}, res.Data)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableSchemaReadsNoRows(t *testing.T) {
	s, mock := newMock(t, SQLite, map[string]any{"table": "sales"})
	expectColumns(mock, SQLite)
	mock.ExpectQuery("SELECT COUNT(*) FROM sales").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	schema, err := s.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, schema.RowCount)
	assert.Equal(t, []string{"date", "value", "category"}, schema.ColumnNames())
	assert.Equal(t, "INTEGER", schema.Columns[1].Dtype)
	assert.True(t, schema.Columns[1].IsNumeric)
	assert.False(t, schema.Columns[2].IsNumeric)
	for _, col := range schema.Columns {
		assert.Empty(t, col.SampleValues, col.Name)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogLookupFoldsPostgresNames(t *testing.T) {
	var logs bytes.Buffer
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	s, err := New("sales", map[string]any{"table": "Sales"},
		WithDB(db, Postgres), WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	expectColumns(mock, Postgres)
	require.NoError(t, s.Validate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, logs.String(), `"message":"Table columns introspected"`)

	stmt, err := s.Statement(context.Background(), types.Query{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM Sales", stmt.SQL)
}

func TestCatalogLookupKeepsSQLiteNames(t *testing.T) {
	s, mock := newMock(t, SQLite, map[string]any{"table": "Sales"})
	mock.ExpectQuery(SQLite.columnsSQL).
		WithArgs("Sales").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).AddRow("id", "INTEGER"))

	require.NoError(t, s.Validate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomQueryTruncatesScan(t *testing.T) {
	s, mock := newMock(t, Postgres, map[string]any{"query": "SELECT * FROM report"})
	rows := sqlmock.NewRows([]string{"n"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT * FROM report").WillReturnRows(rows)

	res, err := s.Fetch(context.Background(), types.Query{
		Limit:   2,
		Filters: map[string]any{"n": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, int64(1), res.Data[0]["n"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchQueryErrorIsFetchError(t *testing.T) {
	s, mock := newMock(t, SQLite, map[string]any{"query": "SELECT broken"})
	mock.ExpectQuery("SELECT broken").WillReturnError(sql.ErrConnDone)

	_, err := s.Fetch(context.Background(), types.Query{})
	require.Error(t, err)
	assert.True(t, types.IsFetch(err))
	assert.Equal(t, "SELECT broken", errors.GetContext(err)["sql"])
}

func TestParseConnection(t *testing.T) {
	tests := []struct {
		conn    string
		dialect string
		dsn     string
	}{
		{"sqlite:///data/app.db", "sqlite", "data/app.db"},
		{"sqlite:////var/lib/app.db", "sqlite", "/var/lib/app.db"},
		{"duckdb:///warehouse.duckdb", "duckdb", "warehouse.duckdb"},
		{"postgresql+psycopg2://u:p@db:5432/app", "postgres", "postgres://u:p@db:5432/app"},
		{"postgres://db/app?sslmode=disable", "postgres", "postgres://db/app?sslmode=disable"},
		{"mssql://sa:pw@sql:1433?database=app", "sqlserver", "sqlserver://sa:pw@sql:1433?database=app"},
	}
	for _, tt := range tests {
		t.Run(tt.conn, func(t *testing.T) {
			d, dsn, err := ParseConnection(tt.conn)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, d.Name)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	for _, bad := range []string{"", "app.db", "oracle://x", "sqlite://host/app.db", "sqlite:///"} {
		_, _, err := ParseConnection(bad)
		assert.Error(t, err, bad)
	}

	_, _, err := ParseConnection("oracle://scott:tiger@db/orcl")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "tiger")
	assert.Contains(t, err.Error(), "scott:***@db/orcl")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New("db", map[string]any{"table": "t"})
	assert.True(t, types.IsValidation(err))

	_, err = New("db", map[string]any{"connection_string": "oracle://x", "table": "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid connection string")
}

// sqlite end to end

func createSalesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE sales (date TEXT, value INTEGER, category TEXT)`)
	require.NoError(t, err)
	for _, r := range []struct {
		date     string
		value    int
		category string
	}{
		{"2024-01-01", 10, "A"},
		{"2024-01-02", 20, "B"},
		{"2024-01-03", 30, "A"},
		{"2024-01-04", 40, "C"},
		{"2024-01-05", 50, "A"},
	} {
		_, err = db.Exec(`INSERT INTO sales VALUES (?, ?, ?)`, r.date, r.value, r.category)
		require.NoError(t, err)
	}
	return path
}

func newSQLite(t *testing.T, path string, config map[string]any) *Source {
	t.Helper()
	config["connection_string"] = "sqlite:///" + path
	s, err := New("sales_db", config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Validate(context.Background()))
	return s
}

func TestSQLiteFetch(t *testing.T) {
	path := createSalesDB(t)
	s := newSQLite(t, path, map[string]any{"table": "sales", "max_open_conns": 2})
	ctx := context.Background()

	all, err := s.Fetch(ctx, types.Query{})
	require.NoError(t, err)
	require.Equal(t, 5, all.RowCount)
	var sum int64
	for _, row := range all.Data {
		sum += row["value"].(int64)
	}
	assert.Equal(t, int64(150), sum)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), all.Data[0]["date"])

	res, err := s.Fetch(ctx, types.Query{
		Columns: []string{"value"},
		Filters: map[string]any{"category": "A", "value": map[string]any{"gt": 10}},
		OrderBy: "-value",
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"value": int64(50)}, {"value": int64(30)}}, res.Data)

	res, err = s.Fetch(ctx, types.Query{Filters: map[string]any{"category": map[string]any{"contains": "a"}}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
}

func TestSQLiteResultsAreCallerOwned(t *testing.T) {
	path := createSalesDB(t)
	s := newSQLite(t, path, map[string]any{"table": "sales"})
	ctx := context.Background()
	query := types.Query{Filters: map[string]any{"category": "A"}, OrderBy: "value"}

	first, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	second, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first.Data[0]["value"] = int64(-1)
	first.Data = nil

	third, err := s.Fetch(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, second, third)
	assert.Equal(t, 3, third.RowCount)
	assert.Equal(t, int64(10), third.Data[0]["value"])
}

func TestSQLiteInjectionIsInert(t *testing.T) {
	path := createSalesDB(t)
	s := newSQLite(t, path, map[string]any{"table": "sales"})
	ctx := context.Background()

	res, err := s.Fetch(ctx, types.Query{Filters: map[string]any{"category": "A'; DROP TABLE sales; --"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount)

	_, err = s.Fetch(ctx, types.Query{OrderBy: "value; DROP TABLE sales"})
	assert.True(t, types.IsValidation(err))

	res, err = s.Fetch(ctx, types.Query{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.RowCount)
}

func TestSQLiteSchema(t *testing.T) {
	path := createSalesDB(t)
	s := newSQLite(t, path, map[string]any{"table": "sales"})

	schema, err := s.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, schema.RowCount)
	assert.Equal(t, []string{"date", "value", "category"}, schema.ColumnNames())

	value := schema.Columns[1]
	assert.Equal(t, "INTEGER", value.Dtype)
	assert.True(t, value.IsNumeric)
	assert.False(t, value.IsDatetime)
	assert.Empty(t, value.SampleValues)
	assert.NotNil(t, value.SampleValues)
}

func TestSQLiteCustomQuery(t *testing.T) {
	path := createSalesDB(t)
	s := newSQLite(t, path, map[string]any{
		"query": "SELECT category, SUM(value) AS total FROM sales GROUP BY category ORDER BY category",
	})

	res, err := s.Fetch(context.Background(), types.Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{"category": "A", "total": int64(90)},
		{"category": "B", "total": int64(20)},
	}, res.Data)

	schema, err := s.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, schema.RowCount)
	assert.True(t, schema.Columns[1].IsNumeric)
}

func TestSQLiteValidate(t *testing.T) {
	path := createSalesDB(t)
	conn := "sqlite:///" + path

	tests := []struct {
		name   string
		config map[string]any
		want   string
	}{
		{"neither", map[string]any{}, "requires either 'table' or 'query'"},
		{"both", map[string]any{"table": "sales", "query": "SELECT 1"}, "only one of"},
		{"bad table", map[string]any{"table": "sales; DROP TABLE sales"}, "Invalid table name"},
		{"missing table", map[string]any{"table": "nope"}, "Table 'nope' not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config["connection_string"] = conn
			s, err := New("db", tt.config)
			require.NoError(t, err)
			defer s.Close()

			err = s.Validate(context.Background())
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
