package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mediafactory/internal/api"
	"mediafactory/internal/daemonrun"
	"mediafactory/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the work queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))

	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				stats, err := rt.Service.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Jobs"},
					buildJobStatsRows(stats.Jobs),
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Queue", "Items"},
					buildQueueStatsRows(stats.Queue),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func buildJobStatsRows(stats map[string]int) [][]string {
	rows := [][]string{}
	for _, status := range orderedStatuses() {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	return rows
}

func buildQueueStatsRows(stats api.QueueStats) [][]string {
	return [][]string{
		{"ready", strconv.Itoa(stats.Ready)},
		{"leased", strconv.Itoa(stats.Leased)},
		{"delayed", strconv.Itoa(stats.Delayed)},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				entries, err := rt.Queue.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Stage", "Attempt", "Deliveries", "State", "Visible", "Last Error"},
					buildQueueRows(entries, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func buildQueueRows(entries []queue.Entry, now time.Time) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		state := "ready"
		switch {
		case entry.Leased:
			state = "leased"
		case entry.VisibleAt.After(now):
			state = "delayed"
		}
		rows = append(rows, []string{
			entry.JobID,
			string(entry.Stage),
			strconv.Itoa(entry.Attempt),
			strconv.Itoa(entry.Deliveries),
			state,
			api.FormatTime(entry.VisibleAt),
			truncateText(entry.LastError, 60),
		})
	}
	return rows
}
