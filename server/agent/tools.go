package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/transform"
	"github.com/gear6io/dataagent/server/types"
)

func (t *Toolset) registerDataTools() {
	t.register(ToolInfo{
		Name:        "list_sources",
		Description: "List all available data sources.",
		Parameters:  object(nil, map[string]any{}),
	}, t.listSources)

	t.register(ToolInfo{
		Name:        "get_schema",
		Description: "Get schema information for a data source: column names, types and sample values.",
		Parameters: object([]string{"source_name"}, map[string]any{
			"source_name": sourceParam,
		}),
	}, t.getSchema)

	t.register(ToolInfo{
		Name:        "fetch_data",
		Description: "Fetch rows from a data source.",
		Parameters: object([]string{"source_name"}, map[string]any{
			"source_name": sourceParam,
			"columns":     stringsParam("Columns to return; all columns when omitted"),
			"filters":     filtersParam(),
			"limit":       integerParam("Maximum number of rows to return", 1),
			"order_by":    stringParam("Column to sort by; prefix with '-' for descending"),
		}),
	}, t.fetchData)

	t.register(ToolInfo{
		Name:        "create_chart",
		Description: "Create a chart from a data source. Rows are sorted by the x column.",
		Parameters: object([]string{"source_name", "x_column", "y_columns"}, map[string]any{
			"source_name": sourceParam,
			"chart_type": enumParam("Chart type: line for trends, bar for comparisons, scatter for correlations, area for cumulative data",
				string(types.ChartLine), string(types.ChartBar), string(types.ChartScatter), string(types.ChartArea)),
			"x_column": stringParam("Column for the x-axis, usually a date column"),
			"y_columns": stringsParam("Column(s) for the y-axis"),
			"title":     stringParam("Chart title"),
			"x_label":   stringParam("X-axis label"),
			"y_label":   stringParam("Y-axis label"),
			"filters":   filtersParam(),
			"limit":     integerParam("Maximum number of data points", 1),
		}),
	}, t.createChart)
}

type schemaArgs struct {
	SourceName string `json:"source_name"`
}

type fetchArgs struct {
	SourceName string         `json:"source_name"`
	Columns    []string       `json:"columns"`
	Filters    map[string]any `json:"filters"`
	Limit      int            `json:"limit"`
	OrderBy    string         `json:"order_by"`
}

type chartArgs struct {
	SourceName string         `json:"source_name"`
	ChartType  string         `json:"chart_type"`
	XColumn    string         `json:"x_column"`
	YColumns   []string       `json:"y_columns"`
	Title      string         `json:"title"`
	XLabel     string         `json:"x_label"`
	YLabel     string         `json:"y_label"`
	Filters    map[string]any `json:"filters"`
	Limit      int            `json:"limit"`
}

func (t *Toolset) listSources(_ context.Context, raw json.RawMessage) (*Output, error) {
	if _, err := decode[struct{}]("list_sources", raw); err != nil {
		return nil, err
	}
	names := t.sources.List()
	if len(names) == 0 {
		return &Output{Text: "No data sources registered. Ask the user to register one.", Data: []types.SourceInfo{}}, nil
	}
	return &Output{
		Text: "Available data sources: " + strings.Join(names, ", "),
		Data: t.sources.Describe(),
	}, nil
}

func (t *Toolset) getSchema(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[schemaArgs]("get_schema", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("get_schema", "source_name", args.SourceName); err != nil {
		return nil, err
	}
	schema, err := t.sources.GetSchema(ctx, args.SourceName)
	if err != nil {
		return nil, err
	}
	return &Output{Text: describeSchema(schema), Data: schema}, nil
}

func (t *Toolset) fetchData(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[fetchArgs]("fetch_data", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("fetch_data", "source_name", args.SourceName); err != nil {
		return nil, err
	}
	result, err := t.sources.FetchData(ctx, args.SourceName, types.Query{
		Columns: args.Columns,
		Filters: args.Filters,
		Limit:   args.Limit,
		OrderBy: args.OrderBy,
	})
	if err != nil {
		return nil, err
	}
	if result.RowCount == 0 {
		return &Output{Text: fmt.Sprintf("No data found in '%s'", args.SourceName), Data: result}, nil
	}
	heading := fmt.Sprintf("Data from '%s'", args.SourceName)
	return &Output{Text: table(heading, result.Columns, result.Data), Data: result}, nil
}

func (t *Toolset) createChart(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[chartArgs]("create_chart", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("create_chart", "source_name", args.SourceName, "x_column", args.XColumn); err != nil {
		return nil, err
	}
	if err := requireList("create_chart", "y_columns", args.YColumns); err != nil {
		return nil, err
	}

	c, err := t.Chart(ctx, types.ChartRequest{
		DataSource: args.SourceName,
		ChartType:  types.ChartType(strings.ToLower(args.ChartType)),
		XColumn:    args.XColumn,
		YColumns:   args.YColumns,
		Title:      args.Title,
		XLabel:     args.XLabel,
		YLabel:     args.YLabel,
		Filters:    args.Filters,
		Limit:      args.Limit,
	})
	if errors.Is(err, ErrNoData) {
		return &Output{Text: "No data available to chart"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Output{Text: chartSummary(c), Data: c}, nil
}

func (t *Toolset) registerTransformTools() {
	funcs := make([]string, len(transform.Funcs))
	for i, f := range transform.Funcs {
		funcs[i] = string(f)
	}
	funcParam := enumParam("Aggregation function; sum when omitted", funcs...)

	t.register(ToolInfo{
		Name:        "aggregate",
		Description: "Compute a single aggregate over one column of a data source.",
		Parameters: object([]string{"source_name", "column"}, map[string]any{
			"source_name": sourceParam,
			"column":      stringParam("Column to aggregate"),
			"func":        funcParam,
			"filters":     filtersParam(),
		}),
	}, t.aggregate)

	t.register(ToolInfo{
		Name:        "group_by",
		Description: "Group a data source by one or more columns and aggregate another column per group.",
		Parameters: object([]string{"source_name", "group_columns", "agg_column"}, map[string]any{
			"source_name":   sourceParam,
			"group_columns": stringsParam("Columns to group by"),
			"agg_column":    stringParam("Column to aggregate"),
			"agg_func":      funcParam,
			"filters":       filtersParam(),
		}),
	}, t.groupBy)

	t.register(ToolInfo{
		Name:        "rolling_average",
		Description: "Add a rolling average of a column, computed over rows in order.",
		Parameters: object([]string{"source_name", "column"}, map[string]any{
			"source_name": sourceParam,
			"column":      stringParam("Column to average"),
			"window":      integerParam(fmt.Sprintf("Window size in rows; %d when omitted", transform.DefaultWindow), 1),
			"order_by":    stringParam("Column to sort by before averaging, usually the date column"),
			"filters":     filtersParam(),
		}),
	}, t.rollingAverage)

	t.register(ToolInfo{
		Name:        "resample",
		Description: "Aggregate time-series data into daily, weekly, monthly, quarterly or yearly periods.",
		Parameters: object([]string{"source_name", "date_column", "freq", "agg_column"}, map[string]any{
			"source_name": sourceParam,
			"date_column": stringParam("Column holding dates"),
			"freq":        enumParam("Period: D, W, M, Q or Y", "D", "W", "M", "Q", "Y"),
			"agg_column":  stringParam("Column to aggregate"),
			"agg_func":    funcParam,
			"filters":     filtersParam(),
		}),
	}, t.resample)
}

type aggregateArgs struct {
	SourceName string         `json:"source_name"`
	Column     string         `json:"column"`
	Func       string         `json:"func"`
	Filters    map[string]any `json:"filters"`
}

type groupByArgs struct {
	SourceName   string         `json:"source_name"`
	GroupColumns []string       `json:"group_columns"`
	AggColumn    string         `json:"agg_column"`
	AggFunc      string         `json:"agg_func"`
	Filters      map[string]any `json:"filters"`
}

type rollingArgs struct {
	SourceName string         `json:"source_name"`
	Column     string         `json:"column"`
	Window     int            `json:"window"`
	OrderBy    string         `json:"order_by"`
	Filters    map[string]any `json:"filters"`
}

type resampleArgs struct {
	SourceName string         `json:"source_name"`
	DateColumn string         `json:"date_column"`
	Freq       string         `json:"freq"`
	AggColumn  string         `json:"agg_column"`
	AggFunc    string         `json:"agg_func"`
	Filters    map[string]any `json:"filters"`
}

func (t *Toolset) aggregate(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[aggregateArgs]("aggregate", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("aggregate", "source_name", args.SourceName, "column", args.Column); err != nil {
		return nil, err
	}
	result, err := t.sources.FetchData(ctx, args.SourceName, types.Query{Filters: args.Filters})
	if err != nil {
		return nil, err
	}
	agg, err := transform.Aggregate(result.Data, args.Column, args.Func)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("%s of '%s' in '%s' (%d rows): %s", agg.Func, agg.Column, args.SourceName, result.RowCount, valueText(agg.Result))
	return &Output{Text: text, Data: agg}, nil
}

func (t *Toolset) groupBy(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[groupByArgs]("group_by", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("group_by", "source_name", args.SourceName, "agg_column", args.AggColumn); err != nil {
		return nil, err
	}
	if err := requireList("group_by", "group_columns", args.GroupColumns); err != nil {
		return nil, err
	}
	result, err := t.sources.FetchData(ctx, args.SourceName, types.Query{Filters: args.Filters})
	if err != nil {
		return nil, err
	}
	rows, err := transform.GroupBy(result.Data, args.GroupColumns, args.AggColumn, args.AggFunc)
	if err != nil {
		return nil, err
	}
	columns := append(append([]string{}, args.GroupColumns...), args.AggColumn)
	heading := fmt.Sprintf("'%s' grouped by %s", args.SourceName, strings.Join(args.GroupColumns, ", "))
	return &Output{Text: table(heading, columns, rows), Data: rows}, nil
}

func (t *Toolset) rollingAverage(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[rollingArgs]("rolling_average", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("rolling_average", "source_name", args.SourceName, "column", args.Column); err != nil {
		return nil, err
	}
	window := args.Window
	if window == 0 {
		window = transform.DefaultWindow
	}
	result, err := t.sources.FetchData(ctx, args.SourceName, types.Query{Filters: args.Filters, OrderBy: args.OrderBy})
	if err != nil {
		return nil, err
	}
	rows, err := transform.RollingAverage(result.Data, args.Column, window)
	if err != nil {
		return nil, err
	}
	columns := append(append([]string{}, result.Columns...), transform.RollingColumn(args.Column, window))
	heading := fmt.Sprintf("Rolling %d-row average of '%s' in '%s'", window, args.Column, args.SourceName)
	return &Output{Text: table(heading, columns, rows), Data: rows}, nil
}

func (t *Toolset) resample(ctx context.Context, raw json.RawMessage) (*Output, error) {
	args, err := decode[resampleArgs]("resample", raw)
	if err != nil {
		return nil, err
	}
	if err := requireArgs("resample", "source_name", args.SourceName, "date_column", args.DateColumn,
		"freq", args.Freq, "agg_column", args.AggColumn); err != nil {
		return nil, err
	}
	result, err := t.sources.FetchData(ctx, args.SourceName, types.Query{Filters: args.Filters})
	if err != nil {
		return nil, err
	}
	rows, err := transform.Resample(result.Data, args.DateColumn, args.Freq, args.AggColumn, args.AggFunc)
	if err != nil {
		return nil, err
	}
	heading := fmt.Sprintf("'%s' resampled to %s", args.SourceName, strings.ToUpper(args.Freq))
	return &Output{Text: table(heading, rowColumns(rows, args.DateColumn, args.AggColumn), rows), Data: rows}, nil
}
