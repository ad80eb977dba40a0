package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/agent"
	"github.com/gear6io/dataagent/server/chart"
	"github.com/gear6io/dataagent/server/config"
	"github.com/gear6io/dataagent/server/registry"
	"github.com/gear6io/dataagent/server/types"
	"github.com/gear6io/dataagent/utils"
	"github.com/gofiber/fiber/v2"
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

type testServer struct {
	srv  *Server
	dir  string
	logs *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))

	logs := &bytes.Buffer{}
	logger := zerolog.New(logs)
	reg := registry.New(logger)
	t.Cleanup(func() { _ = reg.Close() })
	_, err := reg.Register(context.Background(), types.SourceConfig{
		Name:        "sales",
		Type:        types.SourceCSV,
		Config:      map[string]any{"path": path},
		Description: "Daily sales",
	})
	require.NoError(t, err)

	tools := agent.New(reg, chart.NewEngine("", logger), logger)
	return &testServer{
		srv:  NewServer(config.LoadDefaultConfig(), reg, tools, logger),
		dir:  dir,
		logs: logs,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, []byte, nethttp.Header) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data, resp.Header
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorBody {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(data, &e), string(data))
	return e.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, body, header := ts.do(t, fiber.MethodGet, "/health", "")
	require.Equal(t, fiber.StatusOK, status)

	var health struct {
		Status      string   `json:"status"`
		Version     string   `json:"version"`
		DataSources []string `json:"data_sources"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, config.Version, health.Version)
	assert.Equal(t, []string{"sales"}, health.DataSources)
	assert.True(t, utils.IsULID(header.Get(fiber.HeaderXRequestID)))
}

func TestSourceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodGet, "/data-sources", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `["sales"]`, string(body))

	status, body, _ = ts.do(t, fiber.MethodGet, "/data-sources/info", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[{"name":"sales","type":"csv","description":"Daily sales"}]`, string(body))

	other := filepath.Join(ts.dir, "other.csv")
	require.NoError(t, os.WriteFile(other, []byte("x,y\n1,2\n"), 0o644))
	status, body, _ = ts.do(t, fiber.MethodPost, "/data-sources",
		fmt.Sprintf(`{"name": "other", "type": "CSV", "config": {"path": %q}}`, other))
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"message": "Data source 'other' registered (csv)"}`, string(body))

	status, body, _ = ts.do(t, fiber.MethodGet, "/data-sources", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `["sales", "other"]`, string(body))

	status, body, _ = ts.do(t, fiber.MethodDelete, "/data-sources/other", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"message": "Data source 'other' removed"}`, string(body))

	status, body, _ = ts.do(t, fiber.MethodDelete, "/data-sources/other", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"message": "Data source 'other' not found"}`, string(body))
}

func TestRegisterRejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"unknown type", `{"name": "x", "type": "xml", "config": {}}`, "source.validation"},
		{"missing file", `{"name": "x", "type": "csv", "config": {"path": "/nope/x.csv"}}`, "source.validation"},
		{"missing name", `{"type": "csv", "config": {"path": "/nope/x.csv"}}`, "source.validation"},
		{"bad json", `{"name": `, "http.invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := ts.do(t, fiber.MethodPost, "/data-sources", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			e := decodeError(t, body)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Message)
			assert.NotEmpty(t, e.RequestID)
		})
	}

	_, body, _ := ts.do(t, fiber.MethodGet, "/data-sources", "")
	assert.JSONEq(t, `["sales"]`, string(body))
}

func TestSchemaEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodGet, "/data-sources/sales/schema", "")
	require.Equal(t, fiber.StatusOK, status)
	var schema types.Schema
	require.NoError(t, json.Unmarshal(body, &schema))
	assert.Equal(t, "sales", schema.SourceName)
	assert.Equal(t, []string{"date", "value", "category"}, schema.ColumnNames())
	assert.True(t, schema.Columns[0].IsDatetime)

	status, body, _ = ts.do(t, fiber.MethodGet, "/data-sources/nope/schema", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	e := decodeError(t, body)
	assert.Equal(t, "source.not_found", e.Code)
	assert.Equal(t, "Data source 'nope' not found. Available: sales", e.Message)
	assert.Equal(t, "sales", e.Context["available"])
}

func TestFetchEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodPost, "/data-sources/sales/fetch",
		`{"filters": {"value": {"gte": 30}}, "order_by": "-value", "limit": 2}`)
	require.Equal(t, fiber.StatusOK, status)
	var result struct {
		SourceName string           `json:"source_name"`
		Columns    []string         `json:"columns"`
		Data       []map[string]any `json:"data"`
		RowCount   int              `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "sales", result.SourceName)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, 50.0, result.Data[0]["value"])
	assert.Equal(t, 40.0, result.Data[1]["value"])

	status, _, _ = ts.do(t, fiber.MethodPost, "/data-sources/sales/fetch", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body, _ = ts.do(t, fiber.MethodPost, "/data-sources/sales/fetch", `{"filters": {"value": {"like": 1}}}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "source.validation", decodeError(t, body).Code)
}

func TestChartEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodPost, "/agent/chart",
		`{"data_source": "sales", "chart_type": "line", "x_column": "date", "y_columns": ["value"], "title": "Sales"}`)
	require.Equal(t, fiber.StatusOK, status, string(body))
	var c types.ChartResult
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, "Sales", c.Title)
	assert.Equal(t, 5, c.DataPoints)
	assert.Contains(t, c.HTML, "echarts")

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/chart",
		`{"data_source": "sales", "x_column": "date", "y_columns": ["value"], "filters": {"category": "Z"}}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	e := decodeError(t, body)
	assert.Equal(t, "agent.no_data", e.Code)
	assert.Equal(t, "No data found", e.Message)

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/chart",
		`{"data_source": "sales", "chart_type": "pie", "x_column": "date", "y_columns": ["value"]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "chart.invalid", decodeError(t, body).Code)

	status, _, _ = ts.do(t, fiber.MethodPost, "/agent/chart",
		`{"data_source": "nope", "x_column": "date", "y_columns": ["value"]}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestToolEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodGet, "/agent/tools", "")
	require.Equal(t, fiber.StatusOK, status)
	var tools []agent.ToolInfo
	require.NoError(t, json.Unmarshal(body, &tools))
	assert.Len(t, tools, 8)

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/tools/aggregate", `{"source_name": "sales", "column": "value"}`)
	require.Equal(t, fiber.StatusOK, status, string(body))
	var out struct {
		Tool string `json:"tool"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "aggregate", out.Tool)
	assert.Equal(t, "sum of 'value' in 'sales' (5 rows): 150", out.Text)

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/tools/list_sources", "")
	assert.Equal(t, fiber.StatusOK, status, string(body))

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/tools/drop_everything", `{}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "agent.tool_not_found", decodeError(t, body).Code)

	status, body, _ = ts.do(t, fiber.MethodPost, "/agent/tools/group_by", `{"source_name": "sales", "agg_column": "value"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "agent.invalid_arguments", decodeError(t, body).Code)
}

func TestUnknownRouteAndAccessLog(t *testing.T) {
	ts := newTestServer(t)

	status, body, _ := ts.do(t, fiber.MethodGet, "/nowhere", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "common.not_found", decodeError(t, body).Code)

	logs := ts.logs.String()
	assert.Contains(t, logs, `"message":"Request completed"`)
	assert.Contains(t, logs, `"path":"/nowhere"`)
	assert.Contains(t, logs, `"status":404`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.NewSourceNotFound("x", nil), fiber.StatusNotFound},
		{types.NewValidation("x", "bad"), fiber.StatusBadRequest},
		{types.NewFetch("x", io.EOF, "failed"), fiber.StatusInternalServerError},
		{types.NewChartInvalid("bad"), fiber.StatusBadRequest},
		{types.NewTransformInvalid("bad"), fiber.StatusBadRequest},
		{errors.New(errors.CommonTimeout, "slow", nil), fiber.StatusGatewayTimeout},
		{fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed},
		{io.ErrUnexpectedEOF, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestStartStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := config.LoadDefaultConfig()
	cfg.Server.Address = config.LOCALHOST_ADDRESS
	cfg.Server.HTTPPort = port

	reg := registry.New(zerolog.Nop())
	srv := NewServer(cfg, reg, agent.New(reg, chart.NewEngine("", zerolog.Nop()), zerolog.Nop()), zerolog.Nop())
	require.NoError(t, srv.Start(context.Background()))

	resp, err := nethttp.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
}
