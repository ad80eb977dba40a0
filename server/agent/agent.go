// Package agent exposes the source registry, the chart engine and the
// transforms as named tools with JSON arguments, ready to be offered to a
// function-calling model.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/chart"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

// Sources is the part of the source registry the tools read from
type Sources interface {
	List() []string
	Describe() []types.SourceInfo
	FetchData(ctx context.Context, name string, q types.Query) (*types.Result, error)
	GetSchema(ctx context.Context, name string) (*types.Schema, error)
}

// ToolInfo describes a tool and its JSON-schema parameters
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Output is a tool answer: Text for the model, Data for programmatic callers
type Output struct {
	Tool string `json:"tool"`
	Text string `json:"text"`
	Data any    `json:"data,omitempty"`
}

type handler func(ctx context.Context, args json.RawMessage) (*Output, error)

type tool struct {
	info ToolInfo
	run  handler
}

// Toolset dispatches tool calls by name
type Toolset struct {
	sources Sources
	charts  chart.Renderer
	tools   map[string]tool
	order   []string
	logger  zerolog.Logger
}

// New builds the toolset over a registry and a chart renderer
func New(sources Sources, charts chart.Renderer, logger zerolog.Logger) *Toolset {
	t := &Toolset{
		sources: sources,
		charts:  charts,
		tools:   map[string]tool{},
		logger:  logger.With().Str("component", "agent").Logger(),
	}
	t.registerDataTools()
	t.registerTransformTools()
	return t
}

func (t *Toolset) register(info ToolInfo, run handler) {
	t.tools[info.Name] = tool{info: info, run: run}
	t.order = append(t.order, info.Name)
}

// Tools lists every tool in registration order
func (t *Toolset) Tools() []ToolInfo {
	out := make([]ToolInfo, len(t.order))
	for i, name := range t.order {
		out[i] = t.tools[name].info
	}
	return out
}

// Call runs the named tool with JSON arguments. Empty arguments are treated
// as an empty object.
func (t *Toolset) Call(ctx context.Context, name string, args json.RawMessage) (*Output, error) {
	tl, ok := t.tools[name]
	if !ok {
		return nil, errors.Newf(ErrToolNotFound, "Unknown tool '%s'. Available: %s", name, strings.Join(t.order, ", ")).
			AddContext("tool", name)
	}

	start := time.Now()
	out, err := tl.run(ctx, args)
	if err != nil {
		t.logger.Warn().Err(err).Str("tool", name).Dur("duration", time.Since(start)).Msg("Tool call failed")
		return nil, err
	}
	out.Tool = name
	t.logger.Debug().Str("tool", name).Dur("duration", time.Since(start)).Msg("Tool call completed")
	return out, nil
}

// Chart fetches the source ordered by the x column and renders it. A source
// with no matching rows is an ErrNoData error.
func (t *Toolset) Chart(ctx context.Context, req types.ChartRequest) (*types.ChartResult, error) {
	if req.DataSource == "" {
		return nil, types.NewChartInvalid("data_source is required")
	}
	if req.XColumn == "" {
		return nil, types.NewChartInvalid("x_column is required")
	}
	result, err := t.sources.FetchData(ctx, req.DataSource, types.Query{
		Filters: req.Filters,
		Limit:   req.Limit,
		OrderBy: req.XColumn,
	})
	if err != nil {
		return nil, err
	}
	if result.RowCount == 0 {
		return nil, errors.New(ErrNoData, "No data found", nil).AddContext("source", req.DataSource)
	}
	return t.charts.Render(ctx, result.Data, req)
}

// decode reads tool arguments strictly: unknown fields are rejected and
// numbers keep their exact form
func decode[T any](tool string, raw json.RawMessage) (T, error) {
	var args T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, errors.Wrapf(ErrInvalidArguments, err, "Invalid arguments for %s", tool).AddContext("tool", tool)
	}
	return args, nil
}

// requireArgs fails on the first empty field; fields alternate name, value
func requireArgs(tool string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return errors.Newf(ErrInvalidArguments, "%s requires '%s'", tool, fields[i]).
				AddContext("tool", tool).
				AddContext("argument", fields[i])
		}
	}
	return nil
}

func requireList(tool, field string, values []string) error {
	if len(values) == 0 {
		return errors.Newf(ErrInvalidArguments, "%s requires at least one entry in '%s'", tool, field).
			AddContext("tool", tool).
			AddContext("argument", field)
	}
	return nil
}

func valueText(v any) string {
	if v == nil {
		return "no value"
	}
	return types.FormatValue(v)
}

func chartSummary(c *types.ChartResult) string {
	text := fmt.Sprintf("Chart created: '%s' (%s, %d data points).", c.Title, c.ChartType, c.DataPoints)
	if c.OutputPath != "" {
		text += " Saved to " + c.OutputPath + "."
	}
	return text
}
