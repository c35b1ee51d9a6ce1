package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediafactory/internal/daemonrun"
	"mediafactory/internal/jobs"
	"mediafactory/internal/logging"
	"mediafactory/internal/report"
	"mediafactory/internal/services"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var statuses []string
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export jobs to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildExportOptions(statuses, since, time.Now())
			if err != nil {
				return err
			}
			target := strings.TrimSpace(output)
			if target == "" {
				target = fmt.Sprintf("mediafactory-jobs-%s.xlsx", time.Now().Format("20060102-150405"))
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				exporter := report.NewExporter(rt.Jobs, logging.NewNop())
				count, err := exporter.WriteFile(cmd.Context(), target, opts)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"path": target, "rows": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d job(s) to %s\n", count, target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Workbook path (default mediafactory-jobs-<timestamp>.xlsx)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only export jobs with these statuses")
	cmd.Flags().DurationVar(&since, "since", 0, "Only export jobs created within this window (e.g. 72h)")
	return cmd
}

func buildExportOptions(statuses []string, since time.Duration, now time.Time) (report.Options, error) {
	var opts report.Options
	for _, raw := range statuses {
		status, ok := jobs.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !ok {
			return opts, services.Wrap(services.ErrValidation, "export", "parse status", fmt.Sprintf("unknown status %q", raw), nil)
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if since < 0 {
		return opts, services.Wrap(services.ErrValidation, "export", "parse since", "window must be positive", nil)
	}
	if since > 0 {
		opts.Since = now.Add(-since)
	}
	return opts, nil
}
