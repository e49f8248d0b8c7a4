package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon health or the state of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			if len(args) == 1 {
				job, err := client.Status(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				printJob(cmd, job)
				return nil
			}

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, health)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			kind := statusOK
			if health.Status != "UP" {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("API", kind, health.Status+" at "+ctx.apiBase(), colorize))
			stats := health.Executor
			fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo,
				fmt.Sprintf("%d active, %d queued, %d completed, %d failed, %d rejected",
					stats.Active, stats.Queued, stats.Completed, stats.Failed, stats.Rejected), colorize))
			fmt.Fprintln(out, renderStatusLine("Transcode slots", statusInfo,
				fmt.Sprintf("%d/%d in use", stats.GuardInUse, stats.GuardCapacity), colorize))
			if health.TitleCache != nil {
				c := health.TitleCache
				fmt.Fprintln(out, renderStatusLine("Title cache", statusInfo,
					fmt.Sprintf("%d entries, %d hits, %d misses", c.Entries, c.Hits, c.Misses), colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, dep := range health.Dependencies {
				fmt.Fprintln(out, renderStatusLine(dep.Name, dependencyKind(dep.Available, dep.Optional), dependencyMessage(dep.Version, dep.Detail), colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func dependencyKind(available, optional bool) statusKind {
	switch {
	case available:
		return statusOK
	case optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(version, detail string) string {
	if detail != "" {
		return detail
	}
	return version
}
