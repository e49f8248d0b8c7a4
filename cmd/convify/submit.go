package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"convify/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var format string
	var wait bool
	var waitTimeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a YouTube URL for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			resp, err := client.Submit(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			if !wait {
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s %s\n", resp.JobID, resp.Status)
				return nil
			}

			job, err := waitForJob(cmd.Context(), client, resp.JobID, waitTimeout)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			if job.State == jobs.StateFailed {
				return fmt.Errorf("job %s failed: %s", job.ID, job.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "mp3", "Output format: mp3, mp4 or mkv")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Minute, "Maximum time to wait with --wait")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func waitForJob(ctx context.Context, client *apiClient, id string, timeout time.Duration) (jobs.Job, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := client.Status(waitCtx, id)
		if err != nil {
			return jobs.Job{}, err
		}
		if job.State.Terminal() {
			return job, nil
		}
		select {
		case <-waitCtx.Done():
			return job, fmt.Errorf("job %s still %s: %w", id, job.State, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
