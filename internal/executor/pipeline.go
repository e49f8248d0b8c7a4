package executor

import (
	"context"
	"runtime/debug"
	"time"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
	"convify/internal/textutil"
	"convify/internal/transcode"
)

type outcomeKind int

const (
	outcomeCompleted outcomeKind = iota
	outcomeFailed
)

// outcome is the single result of running one job's pipeline.
type outcome struct {
	kind outcomeKind
	path string
	err  error
}

func completed(path string) outcome { return outcome{kind: outcomeCompleted, path: path} }

func failed(err error) outcome { return outcome{kind: outcomeFailed, err: err} }

// process runs one job and always records a terminal state once the job has
// entered processing, including when a collaborator panics. Jobs that are no
// longer pending when dequeued are skipped and never counted as active.
func (e *Executor) process(parent context.Context, id string) {
	ctx := services.WithJobID(parent, id)
	logger := logging.WithContext(ctx, e.logger)

	job, err := e.deps.Store.MarkProcessing(id)
	if err != nil {
		logger.Debug("job skipped", logging.Error(err))
		return
	}
	started := time.Now()
	e.active.Add(1)
	e.notify(ctx, job)

	var result outcome
	defer func() {
		if recovered := recover(); recovered != nil {
			logging.ErrorWithContext(logger, "job panicked", "job_panic",
				logging.Any("panic", recovered),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the stack trace; the worker keeps running"),
			)
			result = failed(panicError(recovered))
		}
		e.finish(ctx, id, result, time.Since(started))
		e.active.Add(-1)
	}()

	result = e.run(ctx, job)
}

func (e *Executor) run(ctx context.Context, job jobs.Job) outcome {
	id := job.ID
	logger := logging.WithContext(ctx, e.logger)

	videoID, err := e.deps.Resolver.ResolveIdentifier(job.Source)
	if err != nil {
		return failed(err)
	}

	title, err := e.deps.Titles.FetchTitle(services.WithStage(ctx, "metadata"), videoID)
	if err != nil {
		return failed(err)
	}
	stem := outputStem(title, videoID, id)
	if updated, err := e.deps.Store.UpdateMetadata(id, videoID, title); err == nil {
		e.notify(ctx, updated)
	}

	if err := e.deps.Admission.CheckCapacity(); err != nil {
		return failed(err)
	}

	waitStart := time.Now()
	permit, err := e.deps.Guard.Acquire(ctx, e.opts.AcquireTimeout)
	if err != nil {
		return failed(err)
	}
	defer permit.Release()
	logger.Debug("transcode slot acquired",
		logging.Duration("wait", time.Since(waitStart)),
		logging.Int("in_use", e.deps.Guard.InUse()),
	)

	path, err := e.deps.Transcoder.Transcode(services.WithStage(ctx, "transcode"), transcode.Request{
		Source: job.Source,
		Format: job.Format,
		Stem:   stem,
	})
	if err != nil {
		return failed(err)
	}

	validated, err := e.deps.Paths.ValidatePath(path)
	if err != nil {
		return failed(err)
	}
	return completed(validated)
}

func (e *Executor) finish(ctx context.Context, id string, result outcome, elapsed time.Duration) {
	logger := logging.WithContext(ctx, e.logger)
	var (
		job jobs.Job
		err error
	)
	switch result.kind {
	case outcomeCompleted:
		job, err = e.deps.Store.Complete(id, result.path)
		if err == nil {
			e.completed.Add(1)
			logger.Info("job completed",
				logging.String("path", result.path),
				logging.Duration("elapsed", elapsed),
				logging.String(logging.FieldEventType, "job_completed"),
			)
		}
	case outcomeFailed:
		kind := services.Kind(result.err)
		job, err = e.deps.Store.Fail(id, result.err.Error(), kind)
		if err == nil {
			e.failed.Add(1)
			logging.WarnWithContext(logger, "job failed", "job_failed",
				logging.String("failure_kind", kind),
				logging.Error(result.err),
				logging.String(logging.FieldErrorHint, failureHint(kind)),
				logging.String(logging.FieldImpact, "no output file was produced"),
			)
		}
	}
	if err != nil {
		logging.ErrorWithContext(logger, "terminal state not recorded", "job_finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job was removed or already terminal"),
		)
		return
	}
	e.processedNs.Add(int64(elapsed))
	e.notify(ctx, job)
}

// outputStem names a job's output "<title>-<job id>". The id keeps jobs for
// the same video and format from writing the same file.
func outputStem(title, videoID, id string) string {
	base := textutil.SanitizeFileName(title)
	if base == "" {
		base = textutil.SanitizeFileName(videoID)
	}
	if base == "" {
		return id
	}
	return base + "-" + id
}

func failureHint(kind string) string {
	switch kind {
	case services.KindBusy:
		return "all transcode slots were busy; resubmit later"
	case services.KindInsufficientResource:
		return "free disk space in output_dir"
	case services.KindValidation:
		return "check the video URL"
	case services.KindNotFound:
		return "video is private, removed, or the ID is wrong"
	case services.KindSecurityViolation:
		return "transcoder wrote outside output_dir"
	default:
		return "inspect the error message and tool logs"
	}
}
