package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"convify/internal/services"
)

func TestAcquireTimesOutWithBusy(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	held, err := g.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = g.Acquire(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("acquire returned after %s, expected to wait for the timeout", elapsed)
	}
	if g.InUse() != 1 {
		t.Fatalf("InUse = %d, want 1", g.InUse())
	}
}

func TestAcquireParentCancelled(t *testing.T) {
	g, _ := New(1)
	held, _ := g.TryAcquire()
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Acquire(ctx, time.Second)
	if errors.Is(err, services.ErrBusy) {
		t.Fatalf("cancellation should not be reported as busy: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	g, _ := New(2)
	p, err := g.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release()
	p.Release()
	if g.InUse() != 0 {
		t.Fatalf("InUse = %d after double release, want 0", g.InUse())
	}
	a, okA := g.TryAcquire()
	b, okB := g.TryAcquire()
	if !okA || !okB {
		t.Fatal("expected both permits available")
	}
	if _, ok := g.TryAcquire(); ok {
		t.Fatal("double release must not add capacity")
	}
	a.Release()
	b.Release()
}

func TestGuardNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	const workers = 12
	g, _ := New(capacity)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := g.Acquire(context.Background(), 5*time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer p.Release()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			if g.InUse() > capacity {
				t.Errorf("InUse = %d exceeds capacity", g.InUse())
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > capacity {
		t.Fatalf("peak concurrency %d exceeds capacity %d", peak.Load(), capacity)
	}
	if g.InUse() != 0 {
		t.Fatalf("InUse = %d after all releases", g.InUse())
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error")
	}
}
