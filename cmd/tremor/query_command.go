package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/storage/query"
)

type queryOptions struct {
	memoryLimit string
	threads     int
}

func (o *queryOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.memoryLimit, "memory-limit", config.DefaultQueryMemoryLimit, "DuckDB memory limit")
	cmd.Flags().IntVar(&o.threads, "threads", 0, "DuckDB threads (0 for the default)")
}

func (o *queryOptions) open(dir string) (*query.Service, error) {
	return query.New(dir, query.Config{MemoryLimit: o.memoryLimit, Threads: o.threads})
}

func newQueryCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query DIR SQL",
		Short: "Run SQL over the outputs of an export directory",
		Long: "Each output is available as a view named after it: dmg_dist_total,\n" +
			"dmg_dist_per_taxonomy, dmg_dist_per_asset and collapse_map.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.open(args[0])
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.ExecuteSQL(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res)
		},
	}

	opts.register(cmd)
	return cmd
}

func writeResult(w io.Writer, res *query.Result) error {
	rows := make([][]string, len(res.Rows))
	aligns := make([]columnAlignment, len(res.Columns))
	for i, row := range res.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = formatValue(v)
			if i == 0 {
				switch v.(type) {
				case float32, float64, int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
					aligns[j] = alignRight
				}
			}
		}
	}
	return writeTable(w, res.Columns, rows, aligns)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
