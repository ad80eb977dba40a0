package cli

import (
	"os"
	"strings"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/types"
	"github.com/spf13/cobra"
)

func newChartCmd(opts *options) *cobra.Command {
	var (
		req     types.ChartRequest
		kind    string
		filters string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "chart <source>",
		Short: "Render a source as an HTML chart",
		Long: `Render a line, bar, scatter or area chart. Rows are sorted by the x column.

The HTML is written to --out, or to the configured chart output directory.`,
		Example: `  dataagent chart sales --x date --y value
  dataagent chart sales --type bar --x category --y value --out sales.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			srv, logger, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeSources(srv, logger)

			req.DataSource = args[0]
			req.ChartType = types.ChartType(strings.ToLower(kind))
			req.Filters = f
			result, err := srv.Tools().Chart(cmd.Context(), req)
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, []byte(result.HTML), 0o644); err != nil {
					return errors.Wrapf(errors.CommonInternal, err, "failed to write chart %s", out)
				}
				result.OutputPath = out
			}

			p := opts.printer(cmd)
			if !p.pretty {
				if result.OutputPath != "" {
					result.HTML = ""
				}
				return p.json(result)
			}
			msg := "Chart created: '" + result.Title + "' (" + string(result.ChartType) + ")"
			if result.OutputPath != "" {
				msg += " -> " + result.OutputPath
			}
			p.success(msg)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&kind, "type", "t", string(types.ChartLine), "chart type: line, bar, scatter or area")
	flags.StringVarP(&req.XColumn, "x", "x", "", "x-axis column")
	flags.StringSliceVarP(&req.YColumns, "y", "y", nil, "y-axis column(s), comma separated")
	flags.StringVar(&req.Title, "title", "", "chart title")
	flags.StringVar(&req.XLabel, "x-label", "", "x-axis label")
	flags.StringVar(&req.YLabel, "y-label", "", "y-axis label")
	flags.StringVar(&filters, "filters", "", "filters as a JSON object")
	flags.IntVarP(&req.Limit, "limit", "n", 0, "maximum data points")
	flags.StringVarP(&out, "out", "o", "", "write the HTML to this file")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}
