package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"convify/internal/services"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Root is the managed output directory.
type Root struct {
	dir          string
	minFreeBytes uint64
	statfs       statfsFunc
}

// NewRoot returns a Root for dir, creating the directory when missing.
func NewRoot(dir string, minFreeBytes uint64) (*Root, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: output directory is required")
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %q: %w", abs, err)
	}
	return &Root{dir: abs, minFreeBytes: minFreeBytes, statfs: realStatfs}, nil
}

// Dir returns the absolute output directory.
func (r *Root) Dir() string {
	return r.dir
}

// Join builds a path for name directly under the root.
func (r *Root) Join(name string) string {
	return filepath.Join(r.dir, filepath.Base(name))
}

// ValidatePath normalizes path and confirms it stays inside the root. Relative
// paths are resolved against the root. Symlinks that point outside the root
// are rejected when the target exists.
func (r *Root) ValidatePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "validate path", "path is empty", nil)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}
	cleaned := filepath.Clean(path)
	if !within(r.dir, cleaned) {
		return "", services.Wrap(services.ErrSecurityViolation, "storage", "validate path", "Invalid path", nil)
	}

	resolved, err := filepath.EvalSymlinks(cleaned)
	switch {
	case err == nil:
		rootResolved, rootErr := filepath.EvalSymlinks(r.dir)
		if rootErr != nil {
			rootResolved = r.dir
		}
		if !within(rootResolved, resolved) {
			return "", services.Wrap(services.ErrSecurityViolation, "storage", "validate path", "Invalid path", nil)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", services.Wrap(services.ErrCollaborator, "storage", "validate path", "resolve symlinks", err)
	}
	return cleaned, nil
}

// HasSufficientCapacity reports whether free space on the root's filesystem is
// at least the configured floor.
func (r *Root) HasSufficientCapacity() (bool, error) {
	_, free, err := r.statfs(r.dir)
	if err != nil {
		return false, fmt.Errorf("storage: statfs: %w", err)
	}
	return free >= r.minFreeBytes, nil
}

// FreeBytes returns the available bytes on the root's filesystem.
func (r *Root) FreeBytes() (uint64, error) {
	_, free, err := r.statfs(r.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: statfs: %w", err)
	}
	return free, nil
}

// CheckWritable confirms the daemon user can create files in the root.
func (r *Root) CheckWritable() error {
	if err := unix.Access(r.dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("storage: %s insufficient permissions: %w", r.dir, err)
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
