// Package chart renders rows as interactive HTML charts.
package chart

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/sources/infer"
	"github.com/gear6io/dataagent/server/types"
	"github.com/gear6io/dataagent/utils"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog"
)

const (
	canvasWidth  = "900px"
	canvasHeight = "500px"
	// missingValue is how echarts marks a gap in a series
	missingValue = "-"
)

// Renderer turns rows into a chart
type Renderer interface {
	Render(ctx context.Context, rows []types.Row, req types.ChartRequest) (*types.ChartResult, error)
}

// Engine renders charts with go-echarts. When OutputDir is set every chart
// is also written there as <ulid>.html.
type Engine struct {
	outputDir string
	logger    zerolog.Logger
}

// NewEngine creates a chart engine; outputDir may be empty
func NewEngine(outputDir string, logger zerolog.Logger) *Engine {
	return &Engine{
		outputDir: outputDir,
		logger:    logger.With().Str("component", "chart").Logger(),
	}
}

// Render validates req against rows and renders the chart. Rows are read
// only.
func (e *Engine) Render(ctx context.Context, rows []types.Row, req types.ChartRequest) (*types.ChartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.CommonTimeout, err, "chart rendering cancelled")
	}

	chartType, err := Check(rows, req)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = DefaultTitle(req.XColumn, req.YColumns)
	}
	yLabel := req.YLabel
	if yLabel == "" && len(req.YColumns) == 1 {
		yLabel = req.YColumns[0]
	}
	xLabel := req.XLabel
	if xLabel == "" {
		xLabel = req.XColumn
	}

	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:     canvasWidth,
			Height:    canvasHeight,
			PageTitle: title,
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: yLabel}),
	}

	xs := axisLabels(rows, req.XColumn)
	var buf bytes.Buffer

	switch chartType {
	case types.ChartBar:
		c := charts.NewBar()
		c.SetGlobalOptions(global...)
		c.SetXAxis(xs)
		for _, y := range req.YColumns {
			data := make([]opts.BarData, len(rows))
			for i, row := range rows {
				data[i] = opts.BarData{Value: seriesValue(row[y])}
			}
			c.AddSeries(y, data)
		}
		err = c.Render(&buf)
	case types.ChartScatter:
		c := charts.NewScatter()
		c.SetGlobalOptions(global...)
		c.SetXAxis(xs)
		for _, y := range req.YColumns {
			data := make([]opts.ScatterData, len(rows))
			for i, row := range rows {
				data[i] = opts.ScatterData{Value: seriesValue(row[y])}
			}
			c.AddSeries(y, data)
		}
		err = c.Render(&buf)
	default:
		c := charts.NewLine()
		c.SetGlobalOptions(global...)
		c.SetXAxis(xs)
		for _, y := range req.YColumns {
			data := make([]opts.LineData, len(rows))
			for i, row := range rows {
				data[i] = opts.LineData{Value: seriesValue(row[y])}
			}
			series := []charts.SeriesOpts{
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
			}
			if chartType == types.ChartArea {
				series = append(series, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}))
			}
			c.AddSeries(y, data, series...)
		}
		err = c.Render(&buf)
	}
	if err != nil {
		return nil, errors.Wrap(types.ErrChartInvalid, err, "failed to render chart")
	}

	result := &types.ChartResult{
		ChartType:  chartType,
		Title:      title,
		HTML:       buf.String(),
		DataPoints: len(rows),
	}
	if e.outputDir != "" {
		path, err := e.write(buf.Bytes())
		if err != nil {
			return nil, err
		}
		result.OutputPath = path
	}

	e.logger.Debug().
		Str("chart_type", string(chartType)).
		Int("data_points", len(rows)).
		Str("output", result.OutputPath).
		Msg("Chart rendered")
	return result, nil
}

func (e *Engine) write(html []byte) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", errors.Wrapf(errors.CommonInternal, err, "failed to create chart directory %s", e.outputDir)
	}
	path := filepath.Join(e.outputDir, utils.GenerateULIDString()+".html")
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", errors.Wrapf(errors.CommonInternal, err, "failed to write chart %s", path)
	}
	return path, nil
}

// Check validates a chart request against the rows it will draw and
// returns the effective chart type (line when unset).
func Check(rows []types.Row, req types.ChartRequest) (types.ChartType, error) {
	chartType := req.ChartType
	if chartType == "" {
		chartType = types.ChartLine
	}
	if !chartType.Valid() {
		return "", types.NewChartInvalid("Unsupported chart type: %s. Use one of: line, bar, scatter, area", chartType).
			AddContext("chart_type", string(chartType))
	}
	if len(rows) == 0 {
		return "", types.NewChartInvalid("No data to chart")
	}
	if req.XColumn == "" {
		return "", types.NewChartInvalid("x_column is required")
	}
	if len(req.YColumns) == 0 {
		return "", types.NewChartInvalid("At least one y column is required")
	}

	present := columnSet(rows)
	for _, col := range append([]string{req.XColumn}, req.YColumns...) {
		if !present[col] {
			return "", types.NewChartInvalid("Column '%s' not found in data. Available: %s", col, strings.Join(sortedKeys(present), ", ")).
				AddContext("column", col)
		}
	}
	return chartType, nil
}

// DefaultTitle is "<y1, y2> over <x>"
func DefaultTitle(x string, ys []string) string {
	return strings.Join(ys, ", ") + " over " + x
}

func columnSet(rows []types.Row) map[string]bool {
	set := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			set[k] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// axisLabels renders x values as category labels. A column whose values all
// read as dates is labelled by day, or by timestamp when any value carries a
// time of day.
func axisLabels(rows []types.Row, column string) []string {
	times := make([]time.Time, len(rows))
	allTimes := true
	withClock := false
	for i, row := range rows {
		t, ok := infer.ToTime(row[column])
		if !ok {
			allTimes = false
			break
		}
		times[i] = t
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
			withClock = true
		}
	}

	labels := make([]string, len(rows))
	for i, row := range rows {
		switch {
		case allTimes && withClock:
			labels[i] = times[i].Format(types.TimestampLayout)
		case allTimes:
			labels[i] = times[i].Format("2006-01-02")
		default:
			labels[i] = types.FormatValue(row[column])
		}
	}
	return labels
}

// seriesValue converts a cell to a number echarts can plot
func seriesValue(v any) any {
	switch n := types.NormalizeValue(v).(type) {
	case int64:
		return n
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		return n
	}
	return missingValue
}
