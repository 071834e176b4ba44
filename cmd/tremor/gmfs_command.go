package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/hazard"
	"github.com/xtxerr/tremor/internal/storage/parquet"
)

func newGMFsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmfs",
		Short: "Inspect and convert ground-motion field files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newGMFsConvertCommand())
	cmd.AddCommand(newGMFsInfoCommand())
	return cmd
}

func newGMFsConvertCommand() *cobra.Command {
	var compression string

	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert ground-motion fields between Parquet, YAML and TOML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := hazard.Load(args[0])
			if err != nil {
				return err
			}

			opts := parquet.DefaultOptions()
			opts.Compression = parquet.ParseCompressionType(compression)
			if err := hazard.Save(args[1], g, opts); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %d sites, %d IMTs, %d GSIMs, %d realizations\n",
				args[1], len(g.Sites), len(g.IMTs), len(g.GSIMs), g.NumRealizations)
			return nil
		},
	}

	cmd.Flags().StringVar(&compression, "compression", config.DefaultCompression, "Parquet compression: none, snappy, zstd, lz4, gzip")
	return cmd
}

func newGMFsInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Summarize a ground-motion field file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := hazard.Load(args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"sites", strconv.Itoa(len(g.Sites))},
				{"realizations", strconv.Itoa(g.NumRealizations)},
			}
			for _, imt := range g.IMTs {
				rows = append(rows, []string{"imt", imt})
			}
			for _, gsim := range g.GSIMs {
				rows = append(rows, []string{"gsim", gsim})
			}
			return writeTable(cmd.OutOrStdout(), []string{"Property", "Value"}, rows, nil)
		},
	}
}
