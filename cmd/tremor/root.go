package main

import (
	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/logging"
)

type rootOptions struct {
	logLevel string
	jsonLogs bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tremor",
		Short:         "Scenario damage calculator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.InitWriter(cmd.ErrOrStderr(), logging.ParseLevel(opts.logLevel), opts.jsonLogs)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("TREMOR_LOG_LEVEL", config.DefaultLogLevel), "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newMergeCommand())
	rootCmd.AddCommand(newPickRlzsCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newShellCommand())
	rootCmd.AddCommand(newGMFsCommand())

	return rootCmd
}
