package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gear6io/dataagent/server/types"
	"github.com/spf13/cobra"
)

func newSourcesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the registered data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, logger, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeSources(srv, logger)

			infos := srv.Registry().Describe()
			p := opts.printer(cmd)
			if !p.pretty {
				return p.json(infos)
			}
			if len(infos) == 0 {
				p.info("No data sources registered")
				return nil
			}
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{info.Name, string(info.Type), info.Description}
			}
			return p.table([]string{"Name", "Type", "Description"}, rows)
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <source>",
		Short: "Show a source's columns, types and sample values",
		Example: `  dataagent schema sales
  dataagent schema orders --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, logger, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeSources(srv, logger)

			schema, err := srv.Registry().GetSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			if !p.pretty {
				return p.json(schema)
			}
			p.info(fmt.Sprintf("Schema for '%s' (%d rows)", schema.SourceName, schema.RowCount))
			return p.table([]string{"Column", "Type", "Datetime", "Numeric", "Samples"}, schemaRows(schema))
		},
	}
}

func schemaRows(schema *types.Schema) [][]string {
	rows := make([][]string, len(schema.Columns))
	for i, c := range schema.Columns {
		rows[i] = []string{
			c.Name,
			c.Dtype,
			strconv.FormatBool(c.IsDatetime),
			strconv.FormatBool(c.IsNumeric),
			strings.Join(c.SampleValues, ", "),
		}
	}
	return rows
}

func newFetchCmd(opts *options) *cobra.Command {
	var (
		columns []string
		filters string
		limit   int
		orderBy string
	)
	cmd := &cobra.Command{
		Use:   "fetch <source>",
		Short: "Fetch rows from a source",
		Example: `  dataagent fetch sales --limit 10
  dataagent fetch sales --columns date,value --order-by -value
  dataagent fetch sales --filters '{"category": "A", "value": {"gte": 20}}'`,
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

			result, err := srv.Registry().FetchData(cmd.Context(), args[0], types.Query{
				Columns: columns,
				Filters: f,
				Limit:   limit,
				OrderBy: orderBy,
			})
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			if !p.pretty {
				return p.json(result)
			}
			if err := p.table(result.Columns, rowsTable(result.Columns, result.Data)); err != nil {
				return err
			}
			p.info(fmt.Sprintf("%d rows", result.RowCount))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to return (comma separated)")
	cmd.Flags().StringVar(&filters, "filters", "", "filters as a JSON object")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows to return")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "column to sort by; prefix with - for descending")
	return cmd
}
