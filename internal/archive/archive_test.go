package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := Open(filepath.Join(t.TempDir(), "convify.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func finishedJob(id string, state jobs.State, completed time.Time) jobs.Job {
	created := completed.Add(-time.Minute)
	started := completed.Add(-30 * time.Second)
	job := jobs.Job{
		ID:          id,
		Source:      "https://youtu.be/" + id,
		Format:      jobs.FormatMP3,
		State:       state,
		VideoID:     id,
		Title:       "Title " + id,
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
	}
	if state == jobs.StateCompleted {
		job.ResultPath = "/out/" + id + ".mp3"
	} else {
		job.FailureReason = "Server busy"
		job.FailureKind = services.KindBusy
	}
	return job
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	completed := time.Date(2026, 4, 2, 8, 30, 0, 123, time.UTC)
	job := finishedJob("abc", jobs.StateCompleted, completed)

	if err := archive.Record(ctx, job); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := archive.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != jobs.StateCompleted || got.ResultPath != job.ResultPath || got.Title != job.Title {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("CompletedAt = %v, want %v", got.CompletedAt, completed)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(*job.StartedAt) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, job.StartedAt)
	}
	if got.FailureReason != "" || got.FailureKind != "" {
		t.Fatalf("completed job carries failure fields: %+v", got)
	}
}

func TestRecordRejectsNonTerminal(t *testing.T) {
	archive := openTestArchive(t)
	job := jobs.Job{ID: "p", Source: "https://youtu.be/p", Format: jobs.FormatMP3, State: jobs.StatePending, CreatedAt: time.Now()}
	if err := archive.Record(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestJobUpdatedIgnoresNonTerminal(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	archive.JobUpdated(ctx, jobs.Job{ID: "p", State: jobs.StateProcessing})
	archive.JobUpdated(ctx, finishedJob("f", jobs.StateFailed, time.Now()))

	if _, err := archive.Get(ctx, "p"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("processing job archived: %v", err)
	}
	got, err := archive.Get(ctx, "f")
	if err != nil {
		t.Fatalf("Get failed job: %v", err)
	}
	if got.FailureKind != services.KindBusy {
		t.Fatalf("FailureKind = %q", got.FailureKind)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := archive.Record(ctx, finishedJob(id, jobs.StateCompleted, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	list, err := archive.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "third" || list[1].ID != "second" {
		t.Fatalf("unexpected order: %+v", list)
	}

	all, err := archive.List(ctx, 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d rows", len(all))
	}
}

func TestCountsAndPrune(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

	_ = archive.Record(ctx, finishedJob("old", jobs.StateCompleted, now.Add(-48*time.Hour)))
	_ = archive.Record(ctx, finishedJob("new", jobs.StateCompleted, now))
	_ = archive.Record(ctx, finishedJob("bad", jobs.StateFailed, now))

	counts, err := archive.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[jobs.StateCompleted] != 2 || counts[jobs.StateFailed] != 1 {
		t.Fatalf("counts = %v", counts)
	}

	removed, err := archive.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := archive.Get(ctx, "old"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("old entry survived prune: %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convify.db")
	archive, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := archive.Record(context.Background(), finishedJob("keep", jobs.StateCompleted, time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = archive.Close()

	reopened, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "keep"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convify.db")
	archive, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := archive.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = archive.Close()

	if _, err := Open(path, logging.NewNop()); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}
