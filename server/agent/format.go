package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gear6io/dataagent/server/types"
)

// PreviewRows caps how many rows a text answer shows
const PreviewRows = 20

// table renders rows as a pipe-separated preview under a heading line
func table(heading string, columns []string, rows []types.Row) string {
	shown := rows
	if len(shown) > PreviewRows {
		shown = shown[:PreviewRows]
	}

	header := strings.Join(columns, " | ")
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d total rows, showing %d):\n", heading, len(rows), len(shown))
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("-", len(header)))
	for _, row := range shown {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = types.FormatValue(row[c])
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(cells, " | "))
	}
	return sb.String()
}

func describeSchema(schema *types.Schema) string {
	lines := []string{fmt.Sprintf("Schema for '%s' (%d rows):", schema.SourceName, schema.RowCount)}
	for _, col := range schema.Columns {
		var flags []string
		if col.IsDatetime {
			flags = append(flags, "datetime")
		}
		if col.IsNumeric {
			flags = append(flags, "numeric")
		}
		line := fmt.Sprintf("  - %s: %s", col.Name, col.Dtype)
		if len(flags) > 0 {
			line += " [" + strings.Join(flags, ", ") + "]"
		}
		if samples := col.SampleValues; len(samples) > 0 {
			if len(samples) > 2 {
				samples = samples[:2]
			}
			line += " (e.g., " + strings.Join(samples, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// rowColumns returns the union of row keys, keeping the order of known first
func rowColumns(rows []types.Row, known ...string) []string {
	seen := map[string]bool{}
	cols := make([]string, 0, len(known))
	for _, c := range known {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	var extra []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
