package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediafactory/internal/api"
	"mediafactory/internal/deps"
	"mediafactory/internal/preflight"
)

type healthReport struct {
	Checks       []healthCheck          `json:"checks"`
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Healthy      bool                   `json:"healthy"`
}

type healthCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run preflight checks against directories, binaries and collaborators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			report := buildHealthReport(results, preflight.CheckSystemDeps(cfg))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printHealthReport(cmd, report)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func buildHealthReport(results []preflight.Result, statuses []deps.Status) healthReport {
	report := healthReport{Healthy: true}
	for _, r := range results {
		report.Checks = append(report.Checks, healthCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
		if !r.Passed {
			report.Healthy = false
		}
	}
	report.Dependencies = api.DependencyStatuses(statuses)
	if len(deps.Blocking(statuses)) > 0 {
		report.Healthy = false
	}
	return report
}

func printHealthReport(cmd *cobra.Command, report healthReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, sectionHeader("Preflight", colorize))
	for _, check := range report.Checks {
		state := checkOK
		if !check.Passed {
			state = checkFail
		}
		fmt.Fprintln(out, checkLine(check.Name, state, check.Detail, colorize))
	}

	if len(report.Dependencies) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionHeader("Binaries", colorize))
	for _, dep := range report.Dependencies {
		state := checkOK
		detail := dep.Command
		if !dep.Available {
			state = checkFail
			if dep.Optional {
				state = checkWarn
			}
			detail = dep.Detail
		}
		fmt.Fprintln(out, checkLine(dep.Name, state, detail, colorize))
	}
}
