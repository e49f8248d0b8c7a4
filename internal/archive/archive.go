// Package archive keeps a durable SQLite ledger of finished jobs so history
// outlives the in-memory store's retention window.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Archive persists terminal job snapshots.
type Archive struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the archive database at path.
func Open(path string, logger *slog.Logger) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("archive: database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	archive := &Archive{db: db, path: path, logger: logging.NewComponentLogger(logger, "archive")}
	if err := archive.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string { return a.path }

// Record upserts a terminal job. Non-terminal snapshots are rejected.
func (a *Archive) Record(ctx context.Context, job jobs.Job) error {
	if !job.State.Terminal() || job.CompletedAt == nil {
		return services.Wrap(services.ErrValidation, "archive", "record", fmt.Sprintf("job %s is %s", job.ID, job.State), nil)
	}
	return a.execWithRetry(ctx, `
INSERT INTO job_history (
    id, source_url, format, status, video_id, video_title, result_path,
    failure_reason, failure_kind, created_at, started_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    video_id = excluded.video_id,
    video_title = excluded.video_title,
    result_path = excluded.result_path,
    failure_reason = excluded.failure_reason,
    failure_kind = excluded.failure_kind,
    started_at = excluded.started_at,
    completed_at = excluded.completed_at`,
		job.ID, job.Source, string(job.Format), string(job.State),
		nullableString(job.VideoID), nullableString(job.Title), nullableString(job.ResultPath),
		nullableString(job.FailureReason), nullableString(job.FailureKind),
		formatTime(job.CreatedAt), nullableTime(job.StartedAt), formatTime(*job.CompletedAt),
	)
}

// JobUpdated records terminal snapshots and ignores everything else. Failures
// are logged because listeners cannot fail the job that triggered them.
func (a *Archive) JobUpdated(ctx context.Context, job jobs.Job) {
	if !job.State.Terminal() {
		return
	}
	if err := a.Record(ctx, job); err != nil {
		logging.WarnWithContext(a.logger, "failed to archive job", "archive_write_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions and free space"),
			logging.String(logging.FieldImpact, "job history entry missing"),
		)
	}
}

// Get returns one archived job.
func (a *Archive) Get(ctx context.Context, id string) (jobs.Job, error) {
	row := a.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "archive", "get", "Job not found", nil)
	}
	return job, err
}

// List returns the most recently finished jobs, newest first. A non-positive
// limit returns everything.
func (a *Archive) List(ctx context.Context, limit int) ([]jobs.Job, error) {
	query := selectColumns + " ORDER BY completed_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Counts returns archived totals per state.
func (a *Archive) Counts(ctx context.Context) (map[jobs.State]int, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM job_history GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count job history: %w", err)
	}
	defer rows.Close()

	counts := make(map[jobs.State]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[jobs.State(status)] = count
	}
	return counts, rows.Err()
}

// PruneBefore deletes entries finished before cutoff and returns how many
// rows were removed.
func (a *Archive) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := a.db.ExecContext(ctx, "DELETE FROM job_history WHERE completed_at < ?", formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune job history: %w", err)
	}
	return removed, nil
}

const selectColumns = `SELECT id, source_url, format, status, video_id, video_title, result_path,
    failure_reason, failure_kind, created_at, started_at, completed_at FROM job_history`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (jobs.Job, error) {
	var job jobs.Job
	var format, status, createdRaw, completedRaw string
	var videoID, title, path, reason, kind, startedRaw sql.NullString
	if err := row.Scan(&job.ID, &job.Source, &format, &status, &videoID, &title, &path,
		&reason, &kind, &createdRaw, &startedRaw, &completedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Job{}, err
		}
		return jobs.Job{}, fmt.Errorf("scan job history: %w", err)
	}
	job.Format = jobs.Format(format)
	job.State = jobs.State(status)
	job.VideoID = videoID.String
	job.Title = title.String
	job.ResultPath = path.String
	job.FailureReason = reason.String
	job.FailureKind = kind.String
	if created, err := parseTime(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTime(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	completed, err := parseTime(completedRaw)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("parse completed_at for %s: %w", job.ID, err)
	}
	job.CompletedAt = &completed
	return job, nil
}

// timeLayout is fixed-width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (a *Archive) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := a.db.ExecContext(ctx, query, args...)
		return err
	})
}
