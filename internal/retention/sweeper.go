// Package retention evicts expired job records and deletes aged output files.
//
// Job records are swept on a fixed interval. Output files are swept once a
// day at a configured local wall-clock time. Both sweeps run on a single
// background goroutine that never holds the job store lock longer than one
// predicate evaluation per entry.
package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"convify/internal/jobs"
	"convify/internal/logging"
)

// Policy controls sweep cadence and age limits.
type Policy struct {
	JobRetention     time.Duration
	JobSweepInterval time.Duration
	FileRetention    time.Duration
	FileSweepHour    int
	FileSweepMinute  int
}

// JobResult describes one job sweep.
type JobResult struct {
	Removed []jobs.Job
}

// FileResult describes one file sweep.
type FileResult struct {
	Removed []string
	Errors  []FileError
}

// FileError pairs a path with the error hit while sweeping it.
type FileError struct {
	Path  string
	Error error
}

// Sweeper owns the background retention loop.
type Sweeper struct {
	store     *jobs.Store
	outputDir string
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSweeper builds a sweeper over store and outputDir.
func NewSweeper(store *jobs.Store, outputDir string, policy Policy, logger *slog.Logger) *Sweeper {
	if policy.JobRetention <= 0 {
		policy.JobRetention = time.Hour
	}
	if policy.JobSweepInterval <= 0 {
		policy.JobSweepInterval = time.Hour
	}
	if policy.FileRetention <= 0 {
		policy.FileRetention = 24 * time.Hour
	}
	return &Sweeper{
		store:     store,
		outputDir: strings.TrimSpace(outputDir),
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "retention"),
		now:       time.Now,
	}
}

// SweepJobs removes terminal jobs whose CompletedAt is older than the job
// retention window relative to now. Pending and processing jobs are kept.
func (s *Sweeper) SweepJobs(now time.Time) JobResult {
	cutoff := now.Add(-s.policy.JobRetention)
	removed := s.store.RemoveIf(func(job jobs.Job) bool {
		return job.State.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
	})
	if len(removed) > 0 {
		s.logger.Info("evicted expired job records",
			logging.Int("count", len(removed)),
			logging.Int("remaining", s.store.Len()),
			logging.String(logging.FieldEventType, "job_sweep"),
		)
	}
	return JobResult{Removed: removed}
}

// SweepFiles deletes regular files under the output root whose modification
// time is older than the file retention window. Per-file errors are collected
// and logged; the walk continues past them.
func (s *Sweeper) SweepFiles(ctx context.Context, now time.Time) FileResult {
	result := FileResult{}
	if s.outputDir == "" {
		return result
	}
	cutoff := now.Add(-s.policy.FileRetention)

	walkErr := filepath.WalkDir(s.outputDir, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.outputDir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			result.Errors = append(result.Errors, FileError{Path: path, Error: err})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, FileError{Path: path, Error: err})
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, FileError{Path: path, Error: err})
			logging.WarnWithContext(s.logger, "failed to delete expired output file", "file_sweep_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check output_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			return nil
		}
		result.Removed = append(result.Removed, path)
		s.logger.Debug("deleted expired output file",
			logging.String("path", path),
			logging.Duration("age", now.Sub(info.ModTime())),
		)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.SkipAll) {
		result.Errors = append(result.Errors, FileError{Path: s.outputDir, Error: walkErr})
	}

	s.logger.Info("output file sweep finished",
		logging.Int("removed", len(result.Removed)),
		logging.Int("errors", len(result.Errors)),
		logging.String(logging.FieldEventType, "file_sweep"),
	)
	return result
}

// NextFileSweep returns the first configured wall-clock time strictly after now.
func (s *Sweeper) NextFileSweep(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.policy.FileSweepHour, s.policy.FileSweepMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the background loop. Calling Start while running is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(loopCtx, s.done)
	s.logger.Info("retention sweeper started",
		logging.Duration("job_retention", s.policy.JobRetention),
		logging.Duration("job_sweep_interval", s.policy.JobSweepInterval),
		logging.Duration("file_retention", s.policy.FileRetention),
		logging.String(logging.FieldEventType, "retention_started"),
	)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	jobTicker := time.NewTicker(s.policy.JobSweepInterval)
	defer jobTicker.Stop()

	fileTimer := time.NewTimer(time.Until(s.NextFileSweep(s.now())))
	defer fileTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-jobTicker.C:
			s.SweepJobs(s.now())
		case <-fileTimer.C:
			s.SweepFiles(ctx, s.now())
			fileTimer.Reset(time.Until(s.NextFileSweep(s.now())))
		}
	}
}
