package types

import (
	"strings"
)

// SourceType selects the driver serving a source
type SourceType string

const (
	SourceCSV     SourceType = "csv"
	SourceJSON    SourceType = "json"
	SourceRESTAPI SourceType = "rest_api"
	SourceSQL     SourceType = "sql"
)

// SourceTypes lists every supported type in declaration order
var SourceTypes = []SourceType{SourceCSV, SourceJSON, SourceRESTAPI, SourceSQL}

// ParseSourceType normalizes s and checks it against the supported set
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", NewValidation("", "Unsupported source type: %s", s)
	}
	return t, nil
}

// Valid reports whether t is a supported source type
func (t SourceType) Valid() bool {
	for _, st := range SourceTypes {
		if st == t {
			return true
		}
	}
	return false
}

func (t SourceType) String() string {
	return string(t)
}

// SourceConfig is a registration request. Names are unique within a registry;
// registering an existing name replaces the previous source.
type SourceConfig struct {
	Name        string         `json:"name" yaml:"-"`
	Type        SourceType     `json:"type" yaml:"type"`
	Config      map[string]any `json:"config" yaml:"config"`
	Description string         `json:"description" yaml:"description"`
}

// SourceInfo is the listing view of a registered source
type SourceInfo struct {
	Name        string     `json:"name"`
	Type        SourceType `json:"type"`
	Description string     `json:"description"`
}

// ChartType enumerates the supported chart kinds
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartScatter ChartType = "scatter"
	ChartArea    ChartType = "area"
)

// Valid reports whether c is a supported chart type
func (c ChartType) Valid() bool {
	switch c {
	case ChartLine, ChartBar, ChartScatter, ChartArea:
		return true
	}
	return false
}

// ChartRequest asks for a chart over a source's rows
type ChartRequest struct {
	DataSource string         `json:"data_source"`
	ChartType  ChartType      `json:"chart_type"`
	XColumn    string         `json:"x_column"`
	YColumns   []string       `json:"y_columns"`
	Title      string         `json:"title,omitempty"`
	XLabel     string         `json:"x_label,omitempty"`
	YLabel     string         `json:"y_label,omitempty"`
	Filters    map[string]any `json:"filters,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

// ChartResult carries the rendered chart. The markup is opaque to callers.
type ChartResult struct {
	ChartType  ChartType `json:"chart_type"`
	Title      string    `json:"title"`
	HTML       string    `json:"html,omitempty"`
	DataPoints int       `json:"data_points"`
	OutputPath string    `json:"output_path,omitempty"`
}
