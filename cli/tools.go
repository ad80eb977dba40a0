package cli

import (
	"encoding/json"

	"github.com/gear6io/dataagent/server/agent"
	"github.com/spf13/cobra"
)

func newAggregateCmd(opts *options) *cobra.Command {
	var (
		column  string
		fn      string
		filters string
	)
	cmd := &cobra.Command{
		Use:   "aggregate <source>",
		Short: "Compute sum, mean, count, min, max or std of a column",
		Example: `  dataagent aggregate sales --column value
  dataagent aggregate sales --column value --func mean --filters '{"category": "A"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			call := map[string]any{"source_name": args[0], "column": column, "func": fn}
			if f != nil {
				call["filters"] = f
			}
			raw, err := json.Marshal(call)
			if err != nil {
				return err
			}
			return opts.runTool(cmd, "aggregate", raw)
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "column to aggregate")
	cmd.Flags().StringVar(&fn, "func", "sum", "aggregation function")
	cmd.Flags().StringVar(&filters, "filters", "", "filters as a JSON object")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func newToolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the agent tools and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, logger, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeSources(srv, logger)

			tools := srv.Tools().Tools()
			p := opts.printer(cmd)
			if !p.pretty {
				return p.json(tools)
			}
			rows := make([][]string, len(tools))
			for i, t := range tools {
				rows[i] = []string{t.Name, t.Description}
			}
			return p.table([]string{"Tool", "Description"}, rows)
		},
	}
}

func newCallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Call an agent tool with JSON arguments",
		Example: `  dataagent call list_sources
  dataagent call group_by '{"source_name": "sales", "group_columns": ["category"], "agg_column": "value"}'
  dataagent call resample '{"source_name": "sales", "date_column": "date", "freq": "M", "agg_column": "value"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if len(args) == 2 {
				raw = json.RawMessage(args[1])
			}
			return opts.runTool(cmd, args[0], raw)
		},
	}
}

// runTool calls a tool and prints its text on terminals, the full output
// otherwise
func (o *options) runTool(cmd *cobra.Command, name string, args json.RawMessage) error {
	srv, logger, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer closeSources(srv, logger)

	out, err := srv.Tools().Call(cmd.Context(), name, args)
	if err != nil {
		return err
	}
	return o.printOutput(cmd, out)
}

func (o *options) printOutput(cmd *cobra.Command, out *agent.Output) error {
	p := o.printer(cmd)
	if !p.pretty {
		return p.json(out)
	}
	p.info(out.Text)
	return nil
}
