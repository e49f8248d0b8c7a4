package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"convify/internal/archive"
	"convify/internal/jobs"
	"convify/internal/logging"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var history bool
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List in-flight jobs, or archived history with --history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter jobs.State
			if value := strings.TrimSpace(statusFilter); value != "" {
				parsed, err := jobs.ParseState(value)
				if err != nil {
					return err
				}
				filter = parsed
			}

			var (
				list   []jobs.Job
				counts map[jobs.State]int
			)
			if history {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := archive.Open(cfg.DatabasePath(), logging.NewNop())
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
				defer store.Close()
				list, err = store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				counts, err = store.Counts(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				resp, err := ctx.client().Jobs(cmd.Context(), string(filter))
				if err != nil {
					return err
				}
				list, counts = resp.Jobs, resp.Counts
			}

			list = filterJobs(list, filter)
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}

			if jsonOutput {
				return writeJSON(cmd, struct {
					Jobs   []jobs.Job         `json:"jobs"`
					Counts map[jobs.State]int `json:"counts"`
				}{Jobs: list, Counts: counts})
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(list))
			fmt.Fprintln(out, formatCounts(counts))
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by state (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&history, "history", false, "Read finished jobs from the local archive")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func filterJobs(list []jobs.Job, state jobs.State) []jobs.Job {
	if state == "" {
		return list
	}
	out := make([]jobs.Job, 0, len(list))
	for _, job := range list {
		if job.State == state {
			out = append(out, job)
		}
	}
	return out
}
