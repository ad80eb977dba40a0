package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gear6io/dataagent/server/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// printer writes pterm tables to terminals and JSON everywhere else
type printer struct {
	w      io.Writer
	pretty bool
}

func (o *options) printer(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	pretty := false
	if f, ok := w.(*os.File); ok && !o.json {
		pretty = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, pretty: pretty}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header []string, rows [][]string) error {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, out)
	return err
}

func (p *printer) success(msg string) {
	if p.pretty {
		fmt.Fprint(p.w, pterm.Success.Sprintln(msg))
		return
	}
	fmt.Fprintln(p.w, msg)
}

func (p *printer) info(msg string) {
	if p.pretty {
		fmt.Fprint(p.w, pterm.Info.Sprintln(msg))
		return
	}
	fmt.Fprintln(p.w, msg)
}

// rowsTable renders result rows as strings in column order
func rowsTable(columns []string, rows []types.Row) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(columns))
		for j, c := range columns {
			cells[j] = types.FormatValue(row[c])
		}
		out[i] = cells
	}
	return out
}

// parseFilters decodes a --filters JSON object
func parseFilters(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	q, err := types.DecodeQuery([]byte(`{"filters":` + s + `}`))
	if err != nil {
		return nil, types.NewValidation("", "Invalid --filters: expected a JSON object such as {\"value\": {\"gte\": 10}}")
	}
	return q.Filters, nil
}
