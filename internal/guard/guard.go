// Package guard bounds how many jobs run the heavy transcode phase at once.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"convify/internal/services"
)

// DefaultAcquireTimeout is used when Acquire receives a non-positive timeout.
const DefaultAcquireTimeout = 30 * time.Second

// Guard is a counting pool of permits.
type Guard struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

// Permit is one held slot. Release returns it to the pool exactly once.
type Permit struct {
	guard *Guard
	once  sync.Once
}

// New returns a Guard with capacity permits.
func New(capacity int) (*Guard, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("guard: capacity must be positive, got %d", capacity)
	}
	return &Guard{sem: semaphore.NewWeighted(int64(capacity)), capacity: int64(capacity)}, nil
}

// Acquire waits up to timeout for a permit. A timeout yields ErrBusy; parent
// context cancellation yields an ErrCollaborator wrapping the context error.
func (g *Guard) Acquire(ctx context.Context, timeout time.Duration) (*Permit, error) {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if parentErr := ctx.Err(); parentErr != nil {
			return nil, services.Wrap(services.ErrCollaborator, "guard", "acquire", "cancelled while waiting for slot", parentErr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrBusy, "guard", "acquire", "Server busy", nil)
		}
		return nil, services.Wrap(services.ErrBusy, "guard", "acquire", "Server busy", err)
	}
	g.inUse.Add(1)
	return &Permit{guard: g}, nil
}

// TryAcquire takes a permit only if one is free right now.
func (g *Guard) TryAcquire() (*Permit, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.inUse.Add(1)
	return &Permit{guard: g}, true
}

// InUse reports how many permits are currently held.
func (g *Guard) InUse() int {
	return int(g.inUse.Load())
}

// Capacity reports the pool size.
func (g *Guard) Capacity() int {
	return int(g.capacity)
}

// Release returns the permit. Subsequent calls are no-ops.
func (p *Permit) Release() {
	if p == nil || p.guard == nil {
		return
	}
	p.once.Do(func() {
		p.guard.inUse.Add(-1)
		p.guard.sem.Release(1)
	})
}
