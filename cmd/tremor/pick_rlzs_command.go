package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/calc"
)

func newPickRlzsCommand() *cobra.Command {
	var minValue float64
	var gsim string
	var limit int

	cmd := &cobra.Command{
		Use:   "pick-rlzs JOB",
		Short: "Rank realizations by their distance from the mean total damage",
		Long: "Runs the calculation without exporting and ranks the realizations of each GSIM\n" +
			"by the root mean square error of their total damage against the mean.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadJob(args[0], "")
			if err != nil {
				return err
			}
			cfg.Export.Spool = ""

			report, err := calc.New(cfg).Realizations(cmd.Context())
			if err != nil {
				return err
			}

			gsims := report.GSIMs()
			if gsim != "" {
				gsims = []string{gsim}
			}

			var rows [][]string
			for _, g := range gsims {
				ranked, err := report.RankRealizations(g, minValue)
				if err != nil {
					return err
				}
				for i, r := range ranked {
					if limit > 0 && i >= limit {
						break
					}
					rows = append(rows, []string{g, strconv.Itoa(i + 1), strconv.Itoa(r.Rlz), formatFloat(r.RMSEP)})
				}
			}

			return writeTable(cmd.OutOrStdout(),
				[]string{"GSIM", "Rank", "Rlz", "RMSEP"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight})
		},
	}

	cmd.Flags().Float64Var(&minValue, "min-value", config.DefaultPickRlzsMinValue, "Ignore damage states whose mean is below this value")
	cmd.Flags().StringVar(&gsim, "gsim", "", "Only rank the realizations of this GSIM")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many realizations per GSIM (0 for all)")
	return cmd
}
