package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"convify/internal/admission"
	"convify/internal/api"
	"convify/internal/archive"
	"convify/internal/config"
	"convify/internal/deps"
	"convify/internal/executor"
	"convify/internal/guard"
	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/mirror"
	"convify/internal/retention"
	"convify/internal/storage"
	"convify/internal/transcode"
	"convify/internal/youtube"
)

// Daemon owns every long-lived component and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *jobs.Store
	root     *storage.Root
	executor *executor.Executor
	sweeper  *retention.Sweeper
	archive  *archive.Archive
	mirror   *mirror.Mirror
	titles   *youtube.CachedFetcher
	server   *httpServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LockFilePath  string         `json:"lock_file"`
	DatabasePath  string         `json:"database"`
	APIAddress    string         `json:"api_address,omitempty"`
	MirrorEnabled bool           `json:"mirror_enabled"`
	Executor      executor.Stats `json:"executor"`
}

// New constructs every component from cfg. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	root, err := storage.NewRoot(cfg.Paths.OutputDir, cfg.MinFreeBytes())
	if err != nil {
		return nil, fmt.Errorf("output root: %w", err)
	}
	if err := root.CheckWritable(); err != nil {
		return nil, err
	}

	gate, err := admission.NewGate(admission.Policy{
		Capacity:       cfg.Admission.Capacity,
		RefillTokens:   cfg.Admission.RefillTokens,
		RefillInterval: cfg.RefillInterval(),
	}, root, logger)
	if err != nil {
		return nil, fmt.Errorf("admission gate: %w", err)
	}

	slots, err := guard.New(cfg.Executor.MaxConcurrent)
	if err != nil {
		return nil, err
	}

	client, err := youtube.NewClient(youtube.Config{APIKey: cfg.YouTube.APIKey, BaseURL: cfg.YouTube.BaseURL})
	if err != nil {
		return nil, err
	}
	titles := youtube.NewCachedFetcher(client, cfg.TitleCacheTTL(), cfg.YouTube.CacheMaxEntries, logger)

	var encoder transcode.Encoder
	if cfg.Encoding.DraptoEnabled {
		encoder = transcode.NewDrapto(logger)
	}
	ytdlp := transcode.NewYtDlp(cfg.YouTube.YtDlpBinary, root.Dir(), encoder, logger)

	history, err := archive.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	listeners := []executor.Listener{history}
	var snapshots *mirror.Mirror
	if cfg.MirrorEnabled() {
		snapshots, err = mirror.Connect(ctx, mirror.Options{
			Addr:     cfg.Mirror.RedisAddr,
			Password: cfg.Mirror.RedisPassword,
			DB:       cfg.Mirror.RedisDB,
			TTL:      cfg.JobRetention(),
		}, logger)
		if err != nil {
			logging.WarnWithContext(logger, "redis mirror disabled", "mirror_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "start Redis or clear mirror.redis_addr"),
				logging.String(logging.FieldImpact, "job status is only available from this process"),
			)
			snapshots = nil
		} else if snapshots != nil {
			listeners = append(listeners, snapshots)
		}
	}

	store := jobs.NewStore()
	exec, err := executor.New(executor.Dependencies{
		Store:      store,
		Admission:  gate,
		Guard:      slots,
		Resolver:   youtube.Resolver{},
		Titles:     titles,
		Transcoder: ytdlp,
		Paths:      root,
		Listeners:  listeners,
		Logger:     logger,
	}, executor.Options{
		Workers:        cfg.Executor.Workers,
		QueueCapacity:  cfg.Executor.QueueCapacity,
		AcquireTimeout: cfg.AcquireTimeout(),
	})
	if err != nil {
		_ = history.Close()
		_ = snapshots.Close()
		return nil, err
	}

	hour, minute := cfg.FileSweepClock()
	sweeper := retention.NewSweeper(store, root.Dir(), retention.Policy{
		JobRetention:     cfg.JobRetention(),
		JobSweepInterval: cfg.JobSweepInterval(),
		FileRetention:    cfg.FileRetention(),
		FileSweepHour:    hour,
		FileSweepMinute:  minute,
	}, logger)

	handler := api.New(exec, root, api.Options{
		Token:        cfg.Paths.APIToken,
		Requirements: deps.Requirements(cfg),
		History:      history,
		Titles:       titles,
		Logger:       logger,
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		root:     root,
		executor: exec,
		sweeper:  sweeper,
		archive:  history,
		mirror:   snapshots,
		titles:   titles,
		server:   newHTTPServer(cfg.Paths.APIBind, handler.Handler(), logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the lock and launches the executor, sweeper, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped.Load() {
		return errors.New("daemon was stopped; create a new instance to restart")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another convify daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.executor.Start(runCtx)
	d.sweeper.Start(runCtx)
	d.cancel = cancel

	removed := logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, logging.RotatedLogPattern, logging.LogFileName, d.cfg.Logging.RetentionDays, time.Now())

	d.running.Store(true)
	d.logger.Info("convify daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.address()),
		logging.String("output_dir", d.root.Dir()),
		logging.Int("logs_pruned", removed),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the API, sweeper, and executor, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	d.sweeper.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.executor.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.stopped.Store(true)
	d.logger.Info("convify daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases storage handles.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.mirror.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep runs one job sweep and one file sweep as of now.
func (d *Daemon) Sweep(ctx context.Context, now time.Time) (retention.JobResult, retention.FileResult) {
	return d.sweeper.SweepJobs(now), d.sweeper.SweepFiles(ctx, now)
}

// Executor exposes the job executor.
func (d *Daemon) Executor() *executor.Executor {
	return d.executor
}

// Archive exposes the job history archive.
func (d *Daemon) Archive() *archive.Archive {
	return d.archive
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		DatabasePath:  d.archive.Path(),
		APIAddress:    d.server.address(),
		MirrorEnabled: d.mirror != nil,
		Executor:      d.executor.Stats(),
	}
}
