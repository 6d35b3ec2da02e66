package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockService struct {
	name       string
	shutdownFn func(ctx context.Context) error
	mu         sync.Mutex
	called     bool
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.called = true
	m.mu.Unlock()

	if m.shutdownFn != nil {
		return m.shutdownFn(ctx)
	}
	return nil
}

func (m *mockService) WasCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func TestCoordinator_Register(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	coord.Register(PhaseShutdown, newMockService("svc1"))
	coord.Register(PhaseShutdown, newMockService("svc2"))

	if len(coord.services[PhaseShutdown]) != 2 {
		t.Errorf("expected 2 services, got %d", len(coord.services[PhaseShutdown]))
	}
}

func TestCoordinator_Shutdown_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	var order []Phase
	var mu sync.Mutex

	for _, phase := range []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup} {
		p := phase
		coord.RegisterFunc(p, p.String(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	expected := []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup}
	if len(order) != len(expected) {
		t.Fatalf("expected %d phases, got %d", len(expected), len(order))
	}
	for i, p := range expected {
		if order[i] != p {
			t.Errorf("phase %d: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestCoordinator_Shutdown_ServiceErrorDoesNotBlockOthers(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	failing := newMockService("failing")
	failing.shutdownFn = func(ctx context.Context) error {
		return errors.New("shutdown failed")
	}
	healthy := newMockService("healthy")

	coord.Register(PhaseCleanup, failing)
	coord.Register(PhaseCleanup, healthy)

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !failing.WasCalled() || !healthy.WasCalled() {
		t.Error("all services in a phase must be attempted")
	}
}

func TestCoordinator_ShutdownCh(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	select {
	case <-coord.ShutdownCh():
		t.Fatal("shutdown channel closed before Shutdown")
	default:
	}

	coord.Shutdown(context.Background())

	select {
	case <-coord.ShutdownCh():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed after Shutdown")
	}
}

func TestCoordinator_ShutdownIdempotent(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: time.Second}, zap.NewNop())

	var calls int
	var mu sync.Mutex
	coord.RegisterFunc(PhaseDrain, "once", func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	coord.Shutdown(context.Background())
	coord.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("shutdown function called %d times, want 1", calls)
	}
}

func TestReadinessProbe(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: time.Second}, zap.NewNop())
	probe := NewReadinessProbe(coord)

	if !probe.IsReady() {
		t.Error("probe must be ready before shutdown")
	}

	coord.Shutdown(context.Background())

	deadline := time.After(time.Second)
	for probe.IsReady() {
		select {
		case <-deadline:
			t.Fatal("probe still ready after shutdown")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
