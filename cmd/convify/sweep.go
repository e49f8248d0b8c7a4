package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"convify/internal/archive"
	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/retention"
)

type sweepFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type sweepReport struct {
	Removed       []string       `json:"removed"`
	Failures      []sweepFailure `json:"failures,omitempty"`
	ArchivePruned int64          `json:"archive_pruned"`
	NextFileSweep time.Time      `json:"next_file_sweep"`
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var archiveDays int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired output files now",
		Long:  "Runs the output file sweep once. With --archive-days, also prunes archived job history older than that many days.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			now := time.Now()
			hour, minute := cfg.FileSweepClock()
			sweeper := retention.NewSweeper(jobs.NewStore(), cfg.Paths.OutputDir, retention.Policy{
				JobRetention:     cfg.JobRetention(),
				JobSweepInterval: cfg.JobSweepInterval(),
				FileRetention:    cfg.FileRetention(),
				FileSweepHour:    hour,
				FileSweepMinute:  minute,
			}, logging.NewNop())
			result := sweeper.SweepFiles(cmd.Context(), now)

			var pruned int64
			if archiveDays > 0 {
				store, err := archive.Open(cfg.DatabasePath(), logging.NewNop())
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
				defer store.Close()
				pruned, err = store.PruneBefore(cmd.Context(), now.AddDate(0, 0, -archiveDays))
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				report := sweepReport{
					Removed:       result.Removed,
					ArchivePruned: pruned,
					NextFileSweep: sweeper.NextFileSweep(now),
				}
				for _, failure := range result.Errors {
					report.Failures = append(report.Failures, sweepFailure{Path: failure.Path, Error: failure.Error.Error()})
				}
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d file(s) could not be removed", len(result.Errors))
				}
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d file(s) older than %s\n", len(result.Removed), cfg.FileRetention())
			for _, path := range result.Removed {
				fmt.Fprintf(out, "  %s\n", path)
			}
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "  failed %s: %s\n", failure.Path, failure.Error)
			}
			if archiveDays > 0 {
				fmt.Fprintf(out, "Pruned %d archived job(s)\n", pruned)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d file(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&archiveDays, "archive-days", 0, "Also prune archived jobs older than this many days")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
