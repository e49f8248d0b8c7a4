package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
)

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
	closed bool
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *memoryRedis) Close() error {
	m.closed = true
	return nil
}

func TestPutAndGetRoundTrip(t *testing.T) {
	backend := newMemoryRedis()
	m := newMirror(backend, 90*time.Minute, logging.NewNop())
	ctx := context.Background()

	job := jobs.Job{ID: "abc", Source: "https://youtu.be/abc", Format: jobs.FormatMP3, State: jobs.StatePending, CreatedAt: time.Now().UTC()}
	if err := m.Put(ctx, job); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ttl := backend.ttls[Key("abc")]; ttl != 90*time.Minute {
		t.Fatalf("ttl = %s, want 90m", ttl)
	}

	got, err := m.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "abc" || got.State != jobs.StatePending || got.Format != jobs.FormatMP3 {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	m := newMirror(newMemoryRedis(), 0, logging.NewNop())
	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobUpdatedOverwritesSnapshot(t *testing.T) {
	backend := newMemoryRedis()
	m := newMirror(backend, time.Hour, logging.NewNop())
	ctx := context.Background()

	job := jobs.Job{ID: "abc", State: jobs.StatePending, Format: jobs.FormatMP4}
	m.JobUpdated(ctx, job)
	job.State = jobs.StateCompleted
	job.ResultPath = "/out/abc.mp4"
	m.JobUpdated(ctx, job)

	got, err := m.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != jobs.StateCompleted || got.ResultPath != "/out/abc.mp4" {
		t.Fatalf("snapshot not updated: %+v", got)
	}
}

func TestPutSurfacesBackendError(t *testing.T) {
	backend := newMemoryRedis()
	backend.setErr = errors.New("connection refused")
	m := newMirror(backend, time.Hour, logging.NewNop())

	err := m.Put(context.Background(), jobs.Job{ID: "x"})
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("err = %v, want ErrCollaborator", err)
	}
	m.JobUpdated(context.Background(), jobs.Job{ID: "x"})
}

func TestNilMirrorIsNoOp(t *testing.T) {
	var m *Mirror
	if err := m.Put(context.Background(), jobs.Job{ID: "x"}); err != nil {
		t.Fatalf("Put on nil mirror: %v", err)
	}
	m.JobUpdated(context.Background(), jobs.Job{ID: "x"})
	if _, err := m.Get(context.Background(), "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Get on nil mirror err = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close on nil mirror: %v", err)
	}
}

func TestConnectDisabledWithoutAddress(t *testing.T) {
	m, err := Connect(context.Background(), Options{}, logging.NewNop())
	if err != nil || m != nil {
		t.Fatalf("Connect without addr = %v, %v; want nil, nil", m, err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	m, err := Connect(context.Background(), Options{Addr: "127.0.0.1:1"}, logging.NewNop())
	if err == nil {
		t.Fatalf("expected error connecting to closed port, got mirror %v", m)
	}
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("err = %v, want ErrCollaborator", err)
	}
}
