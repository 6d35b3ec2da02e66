package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/clock"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*CircuitBreaker, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := New("test", &Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 2,
	}, mock, zap.NewNop())
	return cb, mock
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	if err := cb.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit should fail fast, got %v", err)
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb, mock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	mock.Advance(31 * time.Second)

	// Two successes in half-open close the circuit.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, ok); err != nil {
			t.Fatalf("half-open call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, mock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	mock.Advance(31 * time.Second)

	cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.State())
	}
}

func TestHalfOpenLimitsRequests(t *testing.T) {
	cb, mock := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	mock.Advance(31 * time.Second)

	// First probe transitions to half-open, second fills the limit.
	started := make(chan struct{})
	release := make(chan struct{})
	go cb.Execute(ctx, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	if err := cb.Execute(ctx, func(context.Context) error {
		// second in-flight half-open request is allowed
		if err := cb.Execute(ctx, ok); !errors.Is(err, ErrTooManyRequests) {
			t.Errorf("third half-open request: err = %v, want ErrTooManyRequests", err)
		}
		return nil
	}); err != nil {
		t.Fatalf("second half-open request failed: %v", err)
	}
	close(release)
}

func TestContextCancellationDoesNotTrip(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		cb.Execute(ctx, func(context.Context) error { return context.DeadlineExceeded })
	}
	if cb.State() != StateClosed {
		t.Errorf("deadline errors must not open the circuit, state = %v", cb.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	cb.Execute(ctx, ok)
	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)

	if cb.State() != StateClosed {
		t.Errorf("interleaved success should reset the streak, state = %v", cb.State())
	}
}

func TestStatsAndReset(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()

	cb.Execute(ctx, ok)
	cb.Execute(ctx, fail)

	stats := cb.Stats()
	if stats.TotalRequests != 2 || stats.TotalSuccesses != 1 || stats.TotalFailures != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastError != "boom" {
		t.Errorf("LastError = %q", stats.LastError)
	}

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail)
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Error("Reset should close the circuit")
	}
}
