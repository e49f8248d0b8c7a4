package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"convify/internal/guard"
	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

const (
	defaultWorkers       = 5
	defaultQueueCapacity = 100
)

// Dependencies are the collaborators an Executor drives.
type Dependencies struct {
	Store      *jobs.Store
	Admission  Admission
	Guard      *guard.Guard
	Resolver   IdentifierResolver
	Titles     TitleFetcher
	Transcoder Transcoder
	Paths      PathValidator
	Listeners  []Listener
	Logger     *slog.Logger
}

// Options sizes the worker pool.
type Options struct {
	Workers        int
	QueueCapacity  int
	AcquireTimeout time.Duration
}

// Executor owns the worker pool and the submit path.
type Executor struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
	queue  chan string
	newID  func() string

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	stopped  bool
	reserved int

	// submits tracks Submit calls holding a queue reservation; Stop waits on
	// it so no job is enqueued after the drain.
	submits sync.WaitGroup

	submitted   atomic.Int64
	completed   atomic.Int64
	failed      atomic.Int64
	rejected    atomic.Int64
	active      atomic.Int64
	processedNs atomic.Int64
}

// New validates dependencies and returns an idle Executor.
func New(deps Dependencies, opts Options) (*Executor, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("executor: job store is required")
	case deps.Admission == nil:
		return nil, errors.New("executor: admission gate is required")
	case deps.Guard == nil:
		return nil, errors.New("executor: resource guard is required")
	case deps.Resolver == nil, deps.Titles == nil, deps.Transcoder == nil, deps.Paths == nil:
		return nil, errors.New("executor: resolver, title fetcher, transcoder, and path validator are required")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = guard.DefaultAcquireTimeout
	}
	return &Executor{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "executor"),
		queue:  make(chan string, opts.QueueCapacity),
		newID:  uuid.NewString,
	}, nil
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.stopped {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	for i := 0; i < e.opts.Workers; i++ {
		e.wg.Add(1)
		go e.worker(runCtx)
	}
	e.logger.Info("executor started",
		logging.Int("workers", e.opts.Workers),
		logging.Int("queue_capacity", e.opts.QueueCapacity),
		logging.String(logging.FieldEventType, "executor_started"),
	)
}

// Stop cancels in-flight work, waits for workers to exit, and fails any job
// still waiting in the queue.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	e.running = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.submits.Wait()

	drained := 0
	for {
		select {
		case id := <-e.queue:
			e.failQueued(id, "executor stopped before the job ran")
			drained++
		default:
			if drained > 0 {
				logging.WarnWithContext(e.logger, "queued jobs failed at shutdown", "executor_drain",
					logging.Int("count", drained),
					logging.String(logging.FieldErrorHint, "resubmit the affected URLs"),
					logging.String(logging.FieldImpact, "jobs never started"),
				)
			}
			e.logger.Info("executor stopped", logging.String(logging.FieldEventType, "executor_stopped"))
			return
		}
	}
}

// Submit admits a request, records it as pending, and enqueues it. It returns
// the new job ID before any heavy work starts. A full queue or a stopped
// executor is reported as ErrBusy and, like a rate-limited request, leaves no
// record behind.
func (e *Executor) Submit(ctx context.Context, source string, format jobs.Format) (string, error) {
	format, err := jobs.ParseFormat(string(format))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "submit", "format", err.Error(), nil)
	}
	if err := e.reserve(); err != nil {
		e.rejected.Add(1)
		return "", err
	}
	defer e.release()

	if !e.deps.Admission.TryAdmit() {
		e.rejected.Add(1)
		return "", services.Wrap(services.ErrRateLimited, "submit", "", "Rate limit exceeded. Try again later.", nil)
	}

	id := e.newID()
	job, err := e.deps.Store.Create(id, strings.TrimSpace(source), format)
	if err != nil {
		return "", services.Wrap(services.ErrCollaborator, "submit", "create", "", err)
	}
	e.submitted.Add(1)
	e.notify(ctx, job)

	// The reservation guarantees buffer space, so this send never blocks.
	e.queue <- id

	logging.WithContext(services.WithJobID(ctx, id), e.logger).Info("job submitted",
		logging.String("format", string(format)),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return id, nil
}

// reserve claims one queue slot for an in-progress Submit.
func (e *Executor) reserve() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return services.Wrap(services.ErrBusy, "submit", "", "executor is shutting down", nil)
	}
	if len(e.queue)+e.reserved >= cap(e.queue) {
		return services.Wrap(services.ErrBusy, "submit", "", "queue full", nil)
	}
	e.reserved++
	e.submits.Add(1)
	return nil
}

func (e *Executor) release() {
	e.mu.Lock()
	e.reserved--
	e.mu.Unlock()
	e.submits.Done()
}

// Status returns a snapshot of the job or an ErrNotFound error.
func (e *Executor) Status(id string) (jobs.Job, error) {
	return e.deps.Store.Get(id)
}

// Snapshot returns all tracked jobs.
func (e *Executor) Snapshot() []jobs.Job {
	return e.deps.Store.Snapshot()
}

// Stats summarizes executor activity since start.
type Stats struct {
	Submitted     int64         `json:"submitted"`
	Completed     int64         `json:"completed"`
	Failed        int64         `json:"failed"`
	Rejected      int64         `json:"rejected"`
	Active        int64         `json:"active"`
	Queued        int           `json:"queued"`
	GuardInUse    int           `json:"guard_in_use"`
	GuardCapacity int           `json:"guard_capacity"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// Stats returns current counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Submitted:     e.submitted.Load(),
		Completed:     e.completed.Load(),
		Failed:        e.failed.Load(),
		Rejected:      e.rejected.Load(),
		Active:        e.active.Load(),
		Queued:        len(e.queue),
		GuardInUse:    e.deps.Guard.InUse(),
		GuardCapacity: e.deps.Guard.Capacity(),
		TotalDuration: time.Duration(e.processedNs.Load()),
	}
}

func (e *Executor) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-e.queue:
			e.process(ctx, id)
		}
	}
}

// failQueued fails a job that was dequeued without being run. The job still
// passes through processing so its history follows the normal lifecycle.
func (e *Executor) failQueued(id, reason string) {
	ctx := context.Background()
	job, err := e.deps.Store.MarkProcessing(id)
	if err != nil {
		e.logger.Debug("queued job no longer pending", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	e.notify(ctx, job)

	cause := services.Wrap(services.ErrBusy, "queue", "", reason, nil)
	job, err = e.deps.Store.Fail(id, cause.Error(), services.Kind(cause))
	if err != nil {
		e.logger.Debug("queued job already terminal", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	e.failed.Add(1)
	e.notify(ctx, job)
}

func (e *Executor) notify(ctx context.Context, job jobs.Job) {
	if len(e.deps.Listeners) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, listener := range e.deps.Listeners {
		listener.JobUpdated(ctx, job)
	}
}

func panicError(value any) error {
	return services.Wrap(services.ErrCollaborator, "executor", "panic", fmt.Sprint(value), nil)
}
