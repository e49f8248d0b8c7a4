package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"convify/internal/services"
)

func TestValidatePathAcceptsFilesInsideRoot(t *testing.T) {
	root, err := NewRoot(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	target := filepath.Join(root.Dir(), "song.mp3")
	got, err := root.ValidatePath(target)
	if err != nil {
		t.Fatalf("ValidatePath: %v", err)
	}
	if got != target {
		t.Fatalf("got %q, want %q", got, target)
	}

	rel, err := root.ValidatePath("nested/../song.mp3")
	if err != nil {
		t.Fatalf("ValidatePath relative: %v", err)
	}
	if rel != target {
		t.Fatalf("relative path resolved to %q", rel)
	}
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	root, err := NewRoot(filepath.Join(t.TempDir(), "out"), 0)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	for _, candidate := range []string{
		"../secret.txt",
		filepath.Join(root.Dir(), "..", "secret.txt"),
		"/etc/passwd",
		root.Dir() + "-sibling/file.mp3",
	} {
		_, err := root.ValidatePath(candidate)
		if !errors.Is(err, services.ErrSecurityViolation) {
			t.Fatalf("ValidatePath(%q) err = %v, want security violation", candidate, err)
		}
	}
}

func TestValidatePathRejectsEscapingSymlink(t *testing.T) {
	base := t.TempDir()
	root, err := NewRoot(filepath.Join(base, "out"), 0)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	outside := filepath.Join(base, "outside.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("write outside: %v", err)
	}
	link := filepath.Join(root.Dir(), "link.mp3")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	if _, err := root.ValidatePath(link); !errors.Is(err, services.ErrSecurityViolation) {
		t.Fatalf("expected security violation for escaping symlink, got %v", err)
	}
}

func TestHasSufficientCapacity(t *testing.T) {
	root, err := NewRoot(t.TempDir(), 1_000)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	root.statfs = func(string) (uint64, uint64, error) { return 10_000, 999, nil }
	ok, err := root.HasSufficientCapacity()
	if err != nil || ok {
		t.Fatalf("expected insufficient, got ok=%v err=%v", ok, err)
	}
	root.statfs = func(string) (uint64, uint64, error) { return 10_000, 1_000, nil }
	if ok, err := root.HasSufficientCapacity(); err != nil || !ok {
		t.Fatalf("expected sufficient at the floor, got ok=%v err=%v", ok, err)
	}
	root.statfs = func(string) (uint64, uint64, error) { return 0, 0, errors.New("io") }
	if _, err := root.HasSufficientCapacity(); err == nil {
		t.Fatal("expected statfs error")
	}
}

func TestRealStatfsAndWritable(t *testing.T) {
	root, err := NewRoot(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	if ok, err := root.HasSufficientCapacity(); err != nil || !ok {
		t.Fatalf("zero floor should always pass, got ok=%v err=%v", ok, err)
	}
	if err := root.CheckWritable(); err != nil {
		t.Fatalf("CheckWritable: %v", err)
	}
}
