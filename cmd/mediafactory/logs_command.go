package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediafactory/internal/api"
	"mediafactory/internal/daemonrun"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show a job's log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				runCtx := cmd.Context()
				if follow {
					var stop context.CancelFunc
					runCtx, stop = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()
				}
				return streamJobLog(runCtx, rt.Service, args[0], lines, follow, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until the job finishes")
	return cmd
}

func streamJobLog(ctx context.Context, svc *api.Service, id string, lines int, follow bool, out io.Writer) error {
	chunk, err := svc.JobLog(ctx, id, api.LogRequest{Offset: -1, Lines: lines})
	if err != nil {
		return err
	}
	printLines(out, chunk.Lines)
	if !follow {
		return nil
	}

	for {
		job, err := svc.Status(ctx, id)
		if err != nil {
			return err
		}
		finished := job.Status.Terminal()
		chunk, err = svc.JobLog(ctx, id, api.LogRequest{Offset: chunk.Offset, Follow: !finished, Wait: followWait})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		printLines(out, chunk.Lines)
		if finished {
			fmt.Fprintf(out, "-- job %s %s --\n", id, job.Status)
			return nil
		}
	}
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
