package main

import (
	"bytes"
	"strings"
	"testing"

	"convify/internal/jobs"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("API", statusOK, "UP", false)
	if !strings.Contains(got, "API:") || !strings.Contains(got, "[OK] UP") {
		t.Fatalf("unexpected line %q", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("unexpected color codes in %q", got)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("yt-dlp", statusError, "missing", true)
	if !strings.HasPrefix(got, ansiRed) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected red line, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderJobTableTruncatesLongTitles(t *testing.T) {
	job := jobs.Job{
		ID:            "job-1",
		State:         jobs.StateFailed,
		Format:        jobs.FormatMP3,
		Title:         strings.Repeat("x", 80),
		FailureReason: "Video not found",
	}
	out := renderJobTable([]jobs.Job{job})
	if !strings.Contains(out, "job-1") || !strings.Contains(out, "Video not found") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 41)) {
		t.Fatalf("title not truncated:\n%s", out)
	}
}

func TestFormatCountsIsSorted(t *testing.T) {
	got := formatCounts(map[jobs.State]int{jobs.StatePending: 2, jobs.StateCompleted: 1})
	if got != "completed=1 pending=2" {
		t.Fatalf("formatCounts = %q", got)
	}
	if formatCounts(nil) != "no jobs" {
		t.Fatal("expected empty summary")
	}
}
