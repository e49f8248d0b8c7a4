package admission

import (
	"errors"
	"testing"
	"time"

	"convify/internal/logging"
	"convify/internal/services"
)

type fakeProbe struct {
	ok  bool
	err error
}

func (p fakeProbe) HasSufficientCapacity() (bool, error) { return p.ok, p.err }

func newTestGate(t *testing.T, policy Policy, probe CapacityProbe) (*Gate, *time.Time) {
	t.Helper()
	gate, err := NewGate(policy, probe, logging.NewNop())
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return clock }
	return gate, &clock
}

func TestTryAdmitExhaustsAndRefills(t *testing.T) {
	gate, clock := newTestGate(t, Policy{Capacity: 10, RefillTokens: 10, RefillInterval: time.Minute}, nil)

	for i := 0; i < 10; i++ {
		if !gate.TryAdmit() {
			t.Fatalf("admission %d denied with tokens remaining", i+1)
		}
	}
	if gate.TryAdmit() {
		t.Fatal("expected eleventh admission to be denied")
	}
	if gate.Available() != 0 {
		t.Fatalf("Available = %d, want 0", gate.Available())
	}

	*clock = clock.Add(2 * time.Minute)
	admitted := 0
	for gate.TryAdmit() {
		admitted++
		if admitted > 20 {
			t.Fatal("bucket exceeded capacity")
		}
	}
	if admitted != 10 {
		t.Fatalf("admitted %d after refill, want bucket capacity 10", admitted)
	}
}

func TestTryAdmitDeniedHasNoSideEffects(t *testing.T) {
	gate, clock := newTestGate(t, Policy{Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute}, nil)
	if !gate.TryAdmit() {
		t.Fatal("first admission denied")
	}
	for i := 0; i < 5; i++ {
		if gate.TryAdmit() {
			t.Fatal("expected denial")
		}
	}
	*clock = clock.Add(2 * time.Minute)
	if !gate.TryAdmit() {
		t.Fatal("denials must not delay the refill")
	}
}

func TestCheckCapacity(t *testing.T) {
	policy := Policy{Capacity: 1, RefillTokens: 1, RefillInterval: time.Second}

	gate, _ := newTestGate(t, policy, fakeProbe{ok: true})
	if err := gate.CheckCapacity(); err != nil {
		t.Fatalf("expected capacity ok, got %v", err)
	}

	gate, _ = newTestGate(t, policy, fakeProbe{ok: false})
	err := gate.CheckCapacity()
	if !errors.Is(err, services.ErrInsufficientResource) {
		t.Fatalf("expected insufficient resource, got %v", err)
	}

	gate, _ = newTestGate(t, policy, fakeProbe{err: errors.New("statfs boom")})
	if err := gate.CheckCapacity(); !errors.Is(err, services.ErrInsufficientResource) {
		t.Fatalf("expected probe error to be classified insufficient, got %v", err)
	}
}

func TestNewGateRejectsInvalidPolicy(t *testing.T) {
	if _, err := NewGate(Policy{}, nil, nil); err == nil {
		t.Fatal("expected error for zero policy")
	}
}
