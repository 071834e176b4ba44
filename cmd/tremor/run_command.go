package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/internal/calc"
	"github.com/xtxerr/tremor/internal/damage"
)

func newRunCommand() *cobra.Command {
	var exportDir string
	var spool string
	var quantiles bool

	cmd := &cobra.Command{
		Use:   "run JOB",
		Short: "Run a scenario damage calculation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadJob(args[0], exportDir)
			if err != nil {
				return err
			}
			if spool != "" {
				cfg.Export.Spool = spool
			}
			if cmd.Flags().Changed("quantiles") {
				cfg.Statistics.Quantiles = quantiles
			}

			res, err := calc.New(cfg).Run(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&exportDir, "export-dir", "o", "", "Export directory (overrides the job file)")
	cmd.Flags().StringVar(&spool, "spool", "", "Spool partial results to this file")
	cmd.Flags().BoolVar(&quantiles, "quantiles", false, "Add quantiles to taxonomy and total outputs")
	return cmd
}

func newMergeCommand() *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "merge JOB SPOOL",
		Short: "Export the results spooled by a previous run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadJob(args[0], exportDir)
			if err != nil {
				return err
			}
			res, err := calc.New(cfg).Resume(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&exportDir, "export-dir", "o", "", "Export directory (overrides the job file)")
	return cmd
}

func printResult(cmd *cobra.Command, res *calc.Result) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "calculation %s: %d blocks, %d assets, %d discarded, %s\n",
		res.CalcID, res.Blocks, res.Stats.Assets, res.Discarded, res.Duration.Round(time.Millisecond))

	keys := make([]string, 0, len(res.Outputs))
	for k := range res.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %-22s %s\n", k, res.Outputs[k])
	}

	return writeTable(cmd.OutOrStdout(), totalHeaders, totalTableRows(res.Report.Total), totalAligns)
}

var (
	totalHeaders = []string{"GSIM", "Damage state", "Mean", "Stddev", "P50", "P90", "P95", "P99"}
	totalAligns  = []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
)

func totalTableRows(total []damage.DmgDistTotal) [][]string {
	rows := make([][]string, 0, len(total))
	for _, d := range total {
		row := []string{d.GSIM, d.DamageState.Name, formatFloat(d.Mean), formatFloat(d.Stddev)}
		if q := d.Quantiles; q != nil {
			row = append(row, formatFloat(q.P50), formatFloat(q.P90), formatFloat(q.P95), formatFloat(q.P99))
		} else {
			row = append(row, "-", "-", "-", "-")
		}
		rows = append(rows, row)
	}
	return rows
}
