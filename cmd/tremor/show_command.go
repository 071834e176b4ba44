package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/export"
)

func newShowCommand() *cobra.Command {
	var output string
	var gsim string

	cmd := &cobra.Command{
		Use:   "show DIR",
		Short: "Display the outputs of an export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			m, err := export.ReadManifest(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "calculation %s (%s), gsims %s, damage states %s\n",
				m.CalcID, m.CreatedAt.Format("2006-01-02 15:04:05"),
				strings.Join(m.GSIMs, ", "), strings.Join(m.DamageStates, ", "))

			headers, rows, aligns, err := showRows(dir, output, gsim)
			if err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), headers, rows, aligns)
		},
	}

	cmd.Flags().StringVar(&output, "output", "total", "Output to display: total, taxonomy, asset, collapse")
	cmd.Flags().StringVar(&gsim, "gsim", "", "Only show rows of this GSIM")
	return cmd
}

func showRows(dir, output, gsim string) ([]string, [][]string, []columnAlignment, error) {
	keep := func(g string) bool { return gsim == "" || g == gsim }
	var rows [][]string

	switch output {
	case "total":
		total, err := export.ReadTotals(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range total {
			if keep(r.GSIM) {
				rows = append(rows, []string{r.GSIM, r.DamageState, formatFloat(r.Mean), formatFloat(r.Stddev),
					formatOptional(r.P50), formatOptional(r.P90), formatOptional(r.P95), formatOptional(r.P99)})
			}
		}
		return totalHeaders, rows, totalAligns, nil

	case "taxonomy":
		tax, err := export.ReadTaxonomies(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range tax {
			if keep(r.GSIM) {
				rows = append(rows, []string{r.GSIM, r.Taxonomy, r.DamageState, formatFloat(r.Mean), formatFloat(r.Stddev),
					formatOptional(r.P50), formatOptional(r.P90), formatOptional(r.P95), formatOptional(r.P99)})
			}
		}
		headers := []string{"GSIM", "Taxonomy", "Damage state", "Mean", "Stddev", "P50", "P90", "P95", "P99"}
		aligns := append([]columnAlignment{alignLeft}, totalAligns...)
		return headers, rows, aligns, nil

	case "asset":
		assets, err := export.ReadAssets(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range assets {
			if keep(r.GSIM) {
				rows = append(rows, []string{r.GSIM, r.AssetID, formatFloat(r.Lon), formatFloat(r.Lat),
					r.DamageState, formatFloat(r.Mean), formatFloat(r.Stddev)})
			}
		}
		headers := []string{"GSIM", "Asset", "Lon", "Lat", "Damage state", "Mean", "Stddev"}
		aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight}
		return headers, rows, aligns, nil

	case "collapse":
		cm, err := export.ReadCollapseMap(dir)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, r := range cm {
			if keep(r.GSIM) {
				rows = append(rows, []string{r.GSIM, r.AssetID, formatFloat(r.Lon), formatFloat(r.Lat),
					formatFloat(r.Mean), formatFloat(r.Stddev)})
			}
		}
		headers := []string{"GSIM", "Asset", "Lon", "Lat", "Mean", "Stddev"}
		aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
		return headers, rows, aligns, nil
	}

	return nil, nil, nil, errors.NewInvalidValue("output", output, "expected total, taxonomy, asset or collapse")
}
