package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"convify/internal/services"
)

func newTestStore(start time.Time) (*Store, *time.Time) {
	store := NewStore()
	clock := start
	store.now = func() time.Time { return clock }
	return store, &clock
}

func TestLifecycleToCompleted(t *testing.T) {
	store, clock := newTestStore(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	created, err := store.Create("job-1", "https://youtu.be/abc", FormatMP3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.State != StatePending || created.CompletedAt != nil || created.ResultPath != "" {
		t.Fatalf("unexpected pending record: %+v", created)
	}

	*clock = clock.Add(time.Second)
	processing, err := store.MarkProcessing("job-1")
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if processing.StartedAt == nil || processing.CompletedAt != nil {
		t.Fatalf("unexpected processing record: %+v", processing)
	}
	if _, err := store.UpdateMetadata("job-1", "abc", "Title"); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	*clock = clock.Add(5 * time.Second)
	done, err := store.Complete("job-1", "/out/Title.mp3")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.State != StateCompleted || done.ResultPath != "/out/Title.mp3" {
		t.Fatalf("unexpected completed record: %+v", done)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(*clock) {
		t.Fatalf("CompletedAt = %v, want %v", done.CompletedAt, *clock)
	}
	if done.Duration() != 5*time.Second {
		t.Fatalf("Duration = %s", done.Duration())
	}
	if done.VideoID != "abc" || done.Title != "Title" {
		t.Fatalf("metadata lost: %+v", done)
	}
}

func TestFailRequiresProcessing(t *testing.T) {
	store := NewStore()
	if _, err := store.Create("a", "src", FormatMP3); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Fail("a", "boom", services.KindBusy); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fail pending: err = %v, want ErrInvalidTransition", err)
	}
	got, _ := store.Get("a")
	if got.State != StatePending || got.FailureReason != "" || got.CompletedAt != nil {
		t.Fatalf("pending record mutated: %+v", got)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	store := NewStore()
	if _, err := store.Create("a", "src", FormatMP4); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.MarkProcessing("a"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if _, err := store.Fail("a", "boom", services.KindCollaborator); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	for name, op := range map[string]func() error{
		"processing": func() error { _, err := store.MarkProcessing("a"); return err },
		"complete":   func() error { _, err := store.Complete("a", "/x.mp4"); return err },
		"fail":       func() error { _, err := store.Fail("a", "again", ""); return err },
		"metadata":   func() error { _, err := store.UpdateMetadata("a", "id", "t"); return err },
	} {
		if err := op(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s on failed job: err = %v, want ErrInvalidTransition", name, err)
		}
	}

	got, _ := store.Get("a")
	if got.State != StateFailed || got.FailureReason != "boom" || got.FailureKind != services.KindCollaborator {
		t.Fatalf("failed record mutated: %+v", got)
	}
}

func TestCompleteRequiresProcessingAndPath(t *testing.T) {
	store := NewStore()
	_, _ = store.Create("a", "src", FormatMP3)
	if _, err := store.Complete("a", "/out.mp3"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from pending: %v", err)
	}
	_, _ = store.MarkProcessing("a")
	if _, err := store.Complete("a", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete without path: %v", err)
	}
	if _, err := store.MarkProcessing("a"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double processing: %v", err)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.Get("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.MarkProcessing("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on mutate, got %v", err)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	store := NewStore()
	_, _ = store.Create("a", "src", FormatMP3)
	if _, err := store.Create("a", "src", FormatMP3); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := NewStore()
	_, _ = store.Create("a", "src", FormatMP3)
	_, _ = store.MarkProcessing("a")

	snap, _ := store.Get("a")
	*snap.StartedAt = time.Time{}
	snap.State = StateCompleted

	again, _ := store.Get("a")
	if again.State != StateProcessing || again.StartedAt.IsZero() {
		t.Fatalf("store mutated through snapshot: %+v", again)
	}
}

func TestRemoveIfOnlyMatchesPredicate(t *testing.T) {
	store, clock := newTestStore(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	_, _ = store.Create("old", "src", FormatMP3)
	_, _ = store.MarkProcessing("old")
	_, _ = store.Complete("old", "/old.mp3")
	*clock = clock.Add(2 * time.Hour)
	_, _ = store.Create("pending", "src", FormatMP3)

	cutoff := clock.Add(-time.Hour)
	removed := store.RemoveIf(func(j Job) bool {
		return j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
	})
	if len(removed) != 1 || removed[0].ID != "old" {
		t.Fatalf("removed = %+v", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
	if !store.Remove("pending") || store.Remove("pending") {
		t.Fatal("Remove should report presence exactly once")
	}
}

func TestSnapshotOrderingAndCounts(t *testing.T) {
	store, clock := newTestStore(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 3; i++ {
		_, _ = store.Create(fmt.Sprintf("job-%d", i), "src", FormatMP3)
		*clock = clock.Add(time.Second)
	}
	_, _ = store.MarkProcessing("job-1")

	snap := store.Snapshot()
	for i, job := range snap {
		if job.ID != fmt.Sprintf("job-%d", i) {
			t.Fatalf("snapshot[%d] = %s", i, job.ID)
		}
	}
	counts := store.Counts()
	if counts[StatePending] != 2 || counts[StateProcessing] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestConcurrentTransitionsHaveSingleWinner(t *testing.T) {
	store := NewStore()
	_, _ = store.Create("a", "src", FormatMP3)
	_, _ = store.MarkProcessing("a")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = store.Complete("a", "/a.mp3")
			} else {
				_, err = store.Fail("a", "boom", services.KindCollaborator)
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("terminal transitions succeeded %d times, want 1", wins)
	}
}

func TestParseHelpers(t *testing.T) {
	if f, err := ParseFormat(" MP3 "); err != nil || f != FormatMP3 {
		t.Fatalf("ParseFormat = %q, %v", f, err)
	}
	if _, err := ParseFormat("wav"); err == nil {
		t.Fatal("expected error for wav")
	}
	if s, err := ParseState("FAILED"); err != nil || s != StateFailed || !s.Terminal() {
		t.Fatalf("ParseState = %q, %v", s, err)
	}
	if _, err := ParseState("archived"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
