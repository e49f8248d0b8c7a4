// Package mirror copies job snapshots into Redis so other processes can read
// job status. The mirror is optional; a nil *Mirror is a valid no-op.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

const keyPrefix = "job:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type commands interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Mirror writes job snapshots under job:<id> keys with a TTL.
type Mirror struct {
	client commands
	ttl    time.Duration
	logger *slog.Logger
}

// Connect dials Redis and verifies it with PING. An empty address disables
// the mirror and returns nil without error.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Mirror, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, services.Wrap(services.ErrCollaborator, "mirror", "ping", "redis unavailable at "+addr, err)
	}
	m := newMirror(client, opts.TTL, logger)
	m.logger.Info("redis mirror connected",
		logging.String("addr", addr),
		logging.Int("db", opts.DB),
		logging.Duration("ttl", m.ttl),
	)
	return m, nil
}

func newMirror(client commands, ttl time.Duration, logger *slog.Logger) *Mirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{client: client, ttl: ttl, logger: logging.NewComponentLogger(logger, "mirror")}
}

// Key returns the Redis key for a job id.
func Key(id string) string {
	return keyPrefix + id
}

// Put stores a snapshot of job.
func (m *Mirror) Put(ctx context.Context, job jobs.Job) error {
	if m == nil {
		return nil
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("mirror: encode job %s: %w", job.ID, err)
	}
	if err := m.client.Set(ctx, Key(job.ID), payload, m.ttl).Err(); err != nil {
		return services.Wrap(services.ErrCollaborator, "mirror", "set", job.ID, err)
	}
	return nil
}

// Get loads a mirrored snapshot. Missing keys yield ErrNotFound.
func (m *Mirror) Get(ctx context.Context, id string) (jobs.Job, error) {
	if m == nil {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "mirror", "get", "Job not found", nil)
	}
	raw, err := m.client.Get(ctx, Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "mirror", "get", "Job not found", nil)
	}
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrCollaborator, "mirror", "get", id, err)
	}
	var job jobs.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return jobs.Job{}, fmt.Errorf("mirror: decode job %s: %w", id, err)
	}
	return job, nil
}

// JobUpdated mirrors every snapshot. Write failures are logged only.
func (m *Mirror) JobUpdated(ctx context.Context, job jobs.Job) {
	if m == nil {
		return
	}
	if err := m.Put(ctx, job); err != nil {
		logging.WarnWithContext(m.logger, "failed to mirror job", "mirror_write_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check redis_addr and that Redis is running"),
			logging.String(logging.FieldImpact, "external readers see stale status"),
		)
	}
}

// Close releases the Redis connection pool.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
