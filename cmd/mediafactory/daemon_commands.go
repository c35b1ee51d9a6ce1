package main

import (
	"github.com/spf13/cobra"

	"mediafactory/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run workers and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Human-readable console logs")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Worker count (default workflow.workers)")
	cmd.Flags().BoolVar(&opts.DisableAPI, "no-api", false, "Do not start the HTTP API even when api.enabled is set")
	return cmd
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run pipeline workers in the foreground without the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.RunWorkers(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "count", 0, "Number of concurrent workers (default workflow.workers)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Human-readable console logs")
	return cmd
}
