package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"convify/internal/services"
)

// ErrInvalidTransition is returned when a mutation would break the lifecycle order.
var ErrInvalidTransition = errors.New("invalid job state transition")

// ErrDuplicateID is returned when Create receives an ID already present.
var ErrDuplicateID = errors.New("duplicate job id")

// Store holds job records keyed by ID.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job), now: time.Now}
}

// Create inserts a pending record and returns its snapshot.
func (s *Store) Create(id, source string, format Format) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; exists {
		return Job{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	job := &Job{
		ID:        id,
		Source:    source,
		Format:    format,
		State:     StatePending,
		CreatedAt: s.now(),
	}
	s.jobs[id] = job
	return job.clone(), nil
}

// Get returns a copy of the record or an ErrNotFound error.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "get", "Job not found", nil)
	}
	return job.clone(), nil
}

// MarkProcessing moves a pending job to processing.
func (s *Store) MarkProcessing(id string) (Job, error) {
	return s.mutate(id, func(job *Job, now time.Time) error {
		if job.State != StatePending {
			return transitionError(job.State, StateProcessing)
		}
		job.State = StateProcessing
		job.StartedAt = &now
		return nil
	})
}

// UpdateMetadata records the resolved video ID and title on a processing job.
func (s *Store) UpdateMetadata(id, videoID, title string) (Job, error) {
	return s.mutate(id, func(job *Job, _ time.Time) error {
		if job.State != StateProcessing {
			return fmt.Errorf("%w: metadata update on %s job", ErrInvalidTransition, job.State)
		}
		if videoID != "" {
			job.VideoID = videoID
		}
		if title != "" {
			job.Title = title
		}
		return nil
	})
}

// Complete moves a processing job to completed with its result path.
func (s *Store) Complete(id, resultPath string) (Job, error) {
	if resultPath == "" {
		return Job{}, fmt.Errorf("%w: completed job requires a result path", ErrInvalidTransition)
	}
	return s.mutate(id, func(job *Job, now time.Time) error {
		if job.State != StateProcessing {
			return transitionError(job.State, StateCompleted)
		}
		job.State = StateCompleted
		job.ResultPath = resultPath
		job.CompletedAt = &now
		return nil
	})
}

// Fail moves a processing job to failed with the causal message and kind.
func (s *Store) Fail(id, reason, kind string) (Job, error) {
	return s.mutate(id, func(job *Job, now time.Time) error {
		if job.State != StateProcessing {
			return transitionError(job.State, StateFailed)
		}
		job.State = StateFailed
		job.FailureReason = reason
		job.FailureKind = kind
		job.CompletedAt = &now
		return nil
	})
}

// Remove deletes a record. It reports whether one existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// RemoveIf deletes every record for which pred returns true and returns the
// removed snapshots. pred runs under the write lock.
func (s *Store) RemoveIf(pred func(Job) bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []Job
	for id, job := range s.jobs {
		snapshot := job.clone()
		if pred(snapshot) {
			delete(s.jobs, id)
			removed = append(removed, snapshot)
		}
	}
	return removed
}

// Snapshot returns copies of all records ordered by creation time.
func (s *Store) Snapshot() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts tallies records per state.
func (s *Store) Counts() map[State]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[State]int, 4)
	for _, job := range s.jobs {
		counts[job.State]++
	}
	return counts
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) mutate(id string, apply func(*Job, time.Time) error) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "update", "Job not found", nil)
	}
	if err := apply(job, s.now()); err != nil {
		return Job{}, err
	}
	return job.clone(), nil
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
