package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convify/internal/jobs"
)

func printJob(cmd *cobra.Command, job jobs.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("State", stateKind(job.State), string(job.State), colorize))
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, job.Source, colorize))
	fmt.Fprintln(out, renderStatusLine("Format", statusInfo, string(job.Format), colorize))
	if job.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusInfo, job.Title, colorize))
	}
	if job.ResultPath != "" {
		fmt.Fprintln(out, renderStatusLine("File", statusOK, job.ResultPath, colorize))
	}
	if job.FailureReason != "" {
		message := job.FailureReason
		if job.FailureKind != "" {
			message = fmt.Sprintf("%s (%s)", message, job.FailureKind)
		}
		fmt.Fprintln(out, renderStatusLine("Error", statusError, message, colorize))
	}
	if d := job.Duration(); d > 0 {
		fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, d.Round(time.Millisecond).String(), colorize))
	}
}

func stateKind(state jobs.State) statusKind {
	switch state {
	case jobs.StateCompleted:
		return statusOK
	case jobs.StateFailed:
		return statusError
	case jobs.StateProcessing:
		return statusWarn
	default:
		return statusInfo
	}
}

func jobRows(list []jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		detail := job.ResultPath
		if job.State == jobs.StateFailed {
			detail = job.FailureReason
		}
		rows = append(rows, []string{
			job.ID,
			string(job.State),
			string(job.Format),
			truncate(firstNonEmpty(job.Title, job.VideoID, job.Source), 40),
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(detail, 60),
		})
	}
	return rows
}

func renderJobTable(list []jobs.Job) string {
	return renderTable(
		[]string{"ID", "State", "Format", "Title", "Created", "Detail"},
		jobRows(list),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func formatCounts(counts map[jobs.State]int) string {
	if len(counts) == 0 {
		return "no jobs"
	}
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, string(state))
	}
	sort.Strings(states)
	parts := make([]string, 0, len(states))
	for _, state := range states {
		parts = append(parts, fmt.Sprintf("%s=%d", state, counts[jobs.State(state)]))
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 3 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
