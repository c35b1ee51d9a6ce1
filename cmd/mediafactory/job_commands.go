package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediafactory/internal/api"
	"mediafactory/internal/daemonrun"
	"mediafactory/internal/jobs"
	"mediafactory/internal/textutil"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.SubmitRequest

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a production job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				id, err := rt.Service.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SubmitResponse{ID: id, Status: string(jobs.StatusPending)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Topic, "topic", "t", "", "Video topic (required)")
	cmd.Flags().StringVarP(&req.Niche, "niche", "n", "", "Channel niche (default from config)")
	cmd.Flags().IntVarP(&req.LengthSeconds, "length", "l", 0, "Target length in seconds (default from config)")
	cmd.Flags().StringVar(&req.Language, "language", "", "Narration language code (default from config)")
	cmd.Flags().StringVar(&req.VoiceProfile, "voice", "", "Voice profile (default from config)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's progress, attempts and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				job, err := rt.Service.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetails(job))
				return nil
			})
		},
	}
}

func renderJobDetails(job *api.Job) string {
	pairs := [][2]string{
		{"ID", job.ID},
		{"Topic", job.Topic},
		{"Niche", job.Niche},
		{"Length", fmt.Sprintf("%ds", job.LengthSeconds)},
		{"Language", job.Language},
		{"Voice", job.VoiceProfile},
		{"Status", job.Status},
		{"Stage", job.CurrentStage},
		{"Progress", fmt.Sprintf("%d/%d (%.0f%%)", job.Progress.Completed, job.Progress.Total, job.Progress.Percent)},
		{"Created", job.CreatedAt},
	}
	if job.CompletedAt != "" {
		pairs = append(pairs, [2]string{"Completed", job.CompletedAt})
	}
	if job.LastFailedStage != "" {
		pairs = append(pairs, [2]string{"Failed Stage", job.LastFailedStage})
		pairs = append(pairs, [2]string{"Error", job.ErrorMessage})
	}
	out := renderDetails(pairs)
	if len(job.Artifacts) == 0 {
		return out
	}
	rows := make([][]string, 0, len(job.Artifacts))
	for _, artifact := range job.Artifacts {
		rows = append(rows, []string{
			artifact.Stage,
			strconv.Itoa(artifact.Attempt),
			strconv.Itoa(job.Attempts[artifact.Stage]),
			textutil.FormatBytes(artifact.SizeBytes),
			artifact.Path,
		})
	}
	return out + renderTable(
		[]string{"Stage", "Attempt", "Tries", "Size", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel active jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				result, err := rt.Service.CancelJobs(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.CancelUpdated:
						fmt.Fprintf(out, "Job %s cancelled\n", item.ID)
					case api.CancelAlreadyFinished:
						fmt.Fprintf(out, "Job %s already %s\n", item.ID, item.PriorStatus)
					default:
						fmt.Fprintf(out, "Job %s not found\n", item.ID)
					}
				}
				return outcomeError(result.UpdatedCount, len(args), "cancelled")
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>...",
		Short: "Retry failed jobs from the stage that failed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				result, err := rt.Service.RetryJobs(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.RetryUpdated:
						fmt.Fprintf(out, "Job %s re-queued at %s\n", item.ID, item.Stage)
					case api.RetryNotFailed:
						fmt.Fprintf(out, "Job %s is not failed\n", item.ID)
					default:
						fmt.Fprintf(out, "Job %s not found\n", item.ID)
					}
				}
				return outcomeError(result.UpdatedCount, len(args), "retried")
			})
		},
	}
}

// outcomeError makes bulk commands exit non-zero when nothing was updated.
func outcomeError(updated, requested int, verb string) error {
	if updated == 0 && requested > 0 {
		return fmt.Errorf("no jobs %s", verb)
	}
	return nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				items, err := rt.Service.List(cmd.Context(), api.ListRequest{Statuses: statuses, Offset: offset, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Topic", "Status", "Stage", "Progress", "Created"},
					buildJobRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many jobs")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum jobs to show (default 50)")
	return cmd
}

func buildJobRows(items []api.Job) [][]string {
	rows := make([][]string, 0, len(items))
	for _, job := range items {
		stage := job.CurrentStage
		if job.LastFailedStage != "" {
			stage = job.LastFailedStage + " (failed)"
		}
		rows = append(rows, []string{
			job.ID,
			truncateText(job.Topic, 40),
			job.Status,
			stage,
			fmt.Sprintf("%d/%d", job.Progress.Completed, job.Progress.Total),
			job.CreatedAt,
		})
	}
	return rows
}

func truncateText(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}
