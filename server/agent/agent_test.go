package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/chart"
	"github.com/gear6io/dataagent/server/registry"
	"github.com/gear6io/dataagent/server/transform"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `date,value,category
2024-01-01,10,A
2024-01-02,20,B
2024-01-03,30,A
2024-01-04,40,C
2024-01-05,50,A
`

func newToolset(t *testing.T, files map[string]string) (*Toolset, *registry.Registry) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(zerolog.Nop())
	t.Cleanup(func() { _ = reg.Close() })

	for name, content := range files {
		path := filepath.Join(dir, name+".csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := reg.Register(context.Background(), types.SourceConfig{
			Name:   name,
			Type:   types.SourceCSV,
			Config: map[string]any{"path": path},
		})
		require.NoError(t, err)
	}
	return New(reg, chart.NewEngine("", zerolog.Nop()), zerolog.Nop()), reg
}

func call(t *testing.T, ts *Toolset, name, args string) (*Output, error) {
	t.Helper()
	return ts.Call(context.Background(), name, json.RawMessage(args))
}

func TestToolsDescribed(t *testing.T) {
	ts, _ := newToolset(t, nil)

	var names []string
	for _, info := range ts.Tools() {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description, info.Name)
		assert.Equal(t, "object", info.Parameters["type"], info.Name)
		_, err := json.Marshal(info.Parameters)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{
		"list_sources", "get_schema", "fetch_data", "create_chart",
		"aggregate", "group_by", "rolling_average", "resample",
	}, names)
}

func TestListSources(t *testing.T) {
	empty, _ := newToolset(t, nil)
	out, err := call(t, empty, "list_sources", "")
	require.NoError(t, err)
	assert.Equal(t, "list_sources", out.Tool)
	assert.Equal(t, "No data sources registered. Ask the user to register one.", out.Text)

	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})
	out, err = call(t, ts, "list_sources", "{}")
	require.NoError(t, err)
	assert.Equal(t, "Available data sources: sales", out.Text)
	assert.Equal(t, []types.SourceInfo{{Name: "sales", Type: types.SourceCSV}}, out.Data)
}

func TestGetSchema(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "get_schema", `{"source_name": "sales"}`)
	require.NoError(t, err)
	lines := strings.Split(out.Text, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Schema for 'sales' (5 rows):", lines[0])
	assert.Contains(t, lines[1], "  - date: ")
	assert.Contains(t, lines[1], "[datetime]")
	assert.Contains(t, lines[2], "[numeric] (e.g., 10, 20)")

	_, err = call(t, ts, "get_schema", `{}`)
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = call(t, ts, "get_schema", `{"source_name": "nope"}`)
	assert.True(t, types.IsNotFound(err))
}

func TestFetchData(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "fetch_data", `{"source_name": "sales", "order_by": "-value", "limit": 2}`)
	require.NoError(t, err)
	assert.Equal(t, "Data from 'sales' (2 total rows, showing 2):\n"+
		"date | value | category\n"+
		"-----------------------\n"+
		"2024-01-05 | 50 | A\n"+
		"2024-01-04 | 40 | C", out.Text)
	result := out.Data.(*types.Result)
	assert.Equal(t, 2, result.RowCount)

	out, err = call(t, ts, "fetch_data", `{"source_name": "sales", "filters": {"value": {"gte": 30}}, "columns": ["value"]}`)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Data.(*types.Result).RowCount)

	out, err = call(t, ts, "fetch_data", `{"source_name": "sales", "filters": {"category": "Z"}}`)
	require.NoError(t, err)
	assert.Equal(t, "No data found in 'sales'", out.Text)
}

func TestFetchDataPreviewCapped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	ts, _ := newToolset(t, map[string]string{"big": sb.String()})

	out, err := call(t, ts, "fetch_data", `{"source_name": "big"}`)
	require.NoError(t, err)
	lines := strings.Split(out.Text, "\n")
	assert.Equal(t, "Data from 'big' (25 total rows, showing 20):", lines[0])
	assert.Len(t, lines, 2+PreviewRows+1)
	assert.Equal(t, 25, out.Data.(*types.Result).RowCount)
}

func TestCreateChart(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "create_chart", `{"source_name": "sales", "chart_type": "bar", "x_column": "date", "y_columns": ["value"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Chart created: 'value over date' (bar, 5 data points).", out.Text)
	c := out.Data.(*types.ChartResult)
	assert.Equal(t, types.ChartBar, c.ChartType)
	assert.NotEmpty(t, c.HTML)

	out, err = call(t, ts, "create_chart", `{"source_name": "sales", "x_column": "date", "y_columns": ["value"], "filters": {"category": "Z"}}`)
	require.NoError(t, err)
	assert.Equal(t, "No data available to chart", out.Text)
	assert.Nil(t, out.Data)

	_, err = call(t, ts, "create_chart", `{"source_name": "sales", "x_column": "date"}`)
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = call(t, ts, "create_chart", `{"source_name": "sales", "chart_type": "pie", "x_column": "date", "y_columns": ["value"]}`)
	assert.True(t, errors.Is(err, types.ErrChartInvalid))
}

func TestChartWritesFile(t *testing.T) {
	dir := t.TempDir()
	ts, reg := newToolset(t, map[string]string{"sales": salesCSV})
	ts = New(reg, chart.NewEngine(dir, zerolog.Nop()), zerolog.Nop())

	out, err := call(t, ts, "create_chart", `{"source_name": "sales", "x_column": "date", "y_columns": ["value"], "limit": 3}`)
	require.NoError(t, err)
	c := out.Data.(*types.ChartResult)
	assert.Equal(t, 3, c.DataPoints)
	assert.Equal(t, dir, filepath.Dir(c.OutputPath))
	assert.Contains(t, out.Text, "Saved to "+c.OutputPath)
}

func TestChartNoData(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})
	_, err := ts.Chart(context.Background(), types.ChartRequest{
		DataSource: "sales",
		XColumn:    "date",
		YColumns:   []string{"value"},
		Filters:    map[string]any{"value": map[string]any{"gt": 1000}},
	})
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestAggregateTool(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "aggregate", `{"source_name": "sales", "column": "value"}`)
	require.NoError(t, err)
	assert.Equal(t, "sum of 'value' in 'sales' (5 rows): 150", out.Text)
	assert.Equal(t, int64(150), out.Data.(*transform.AggregateResult).Result)

	out, err = call(t, ts, "aggregate", `{"source_name": "sales", "column": "value", "func": "mean", "filters": {"category": "A"}}`)
	require.NoError(t, err)
	assert.Equal(t, "mean of 'value' in 'sales' (3 rows): 30.0", out.Text)

	_, err = call(t, ts, "aggregate", `{"source_name": "sales", "column": "value", "func": "median"}`)
	assert.True(t, errors.Is(err, types.ErrTransformInvalid))
}

func TestGroupByTool(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "group_by", `{"source_name": "sales", "group_columns": ["category"], "agg_column": "value"}`)
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{"category": "A", "value": int64(90)},
		{"category": "B", "value": int64(20)},
		{"category": "C", "value": int64(40)},
	}, out.Data)
	assert.True(t, strings.HasPrefix(out.Text, "'sales' grouped by category (3 total rows, showing 3):\ncategory | value\n"))
}

func TestRollingAverageTool(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "rolling_average", `{"source_name": "sales", "column": "value", "window": 2, "order_by": "date"}`)
	require.NoError(t, err)
	rows := out.Data.([]types.Row)
	require.Len(t, rows, 5)
	assert.Nil(t, rows[0]["value_rolling_2"])
	assert.Equal(t, 15.0, rows[1]["value_rolling_2"])
	assert.Equal(t, 45.0, rows[4]["value_rolling_2"])
	assert.Contains(t, out.Text, "date | value | category | value_rolling_2")
}

func TestResampleTool(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	out, err := call(t, ts, "resample", `{"source_name": "sales", "date_column": "date", "freq": "M", "agg_column": "value"}`)
	require.NoError(t, err)
	rows := out.Data.([]types.Row)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(150), rows[0]["value"])
	assert.Contains(t, out.Text, "2024-01-31 00:00:00 | 150")

	_, err = call(t, ts, "resample", `{"source_name": "sales", "date_column": "date", "agg_column": "value"}`)
	assert.True(t, errors.Is(err, ErrInvalidArguments))
}

func TestCallErrors(t *testing.T) {
	ts, _ := newToolset(t, map[string]string{"sales": salesCSV})

	_, err := call(t, ts, "drop_table", `{}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Contains(t, err.Error(), "Available: list_sources, get_schema")

	_, err = call(t, ts, "fetch_data", `{"source_name": "sales", "sql": "DROP TABLE x"}`)
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = call(t, ts, "fetch_data", `{"source_name": "sales", "limit": "ten"}`)
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = call(t, ts, "fetch_data", `{"source_name": "sales", "filters": {"value": {"between": [1, 2]}}}`)
	assert.True(t, types.IsValidation(err))
}
