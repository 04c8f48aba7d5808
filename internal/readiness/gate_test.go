package readiness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func alwaysReady(name string) Probe {
	return Probe{Name: name, Check: func(ctx context.Context) bool { return true }}
}

func neverReady(name string) Probe {
	return Probe{Name: name, Check: func(ctx context.Context) bool { return false }}
}

func TestAwaitAllReady(t *testing.T) {
	gate := NewGate(time.Millisecond, time.Second, zap.NewNop())

	err := gate.Await(context.Background(), alwaysReady("a"), alwaysReady("b"))
	if err != nil {
		t.Fatalf("Await() = %v, want nil", err)
	}
}

func TestAwaitNoProbes(t *testing.T) {
	gate := NewGate(time.Millisecond, time.Second, zap.NewNop())
	if err := gate.Await(context.Background()); err != nil {
		t.Fatalf("Await() with no probes = %v, want nil", err)
	}
}

func TestAwaitEventuallyReady(t *testing.T) {
	var calls atomic.Int32
	flaky := Probe{
		Name: "slow",
		Check: func(ctx context.Context) bool {
			return calls.Add(1) >= 3
		},
	}

	gate := NewGate(time.Millisecond, time.Second, zap.NewNop())
	if err := gate.Await(context.Background(), flaky); err != nil {
		t.Fatalf("Await() = %v, want nil", err)
	}
	if got := calls.Load(); got < 3 {
		t.Errorf("probe polled %d times, want at least 3", got)
	}
}

func TestAwaitTimeoutReportsMissing(t *testing.T) {
	gate := NewGate(time.Millisecond, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	err := gate.Await(context.Background(), alwaysReady("ok"), neverReady("identity"), neverReady("verify"))
	elapsed := time.Since(start)

	var unavailable *CapabilityUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Await() = %v, want CapabilityUnavailableError", err)
	}
	if len(unavailable.Names) != 2 {
		t.Fatalf("missing = %v, want 2 entries", unavailable.Names)
	}
	// Names are sorted for stable messages.
	if unavailable.Names[0] != "identity" || unavailable.Names[1] != "verify" {
		t.Errorf("missing = %v, want [identity verify]", unavailable.Names)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Await() blocked %v, want bounded by timeout", elapsed)
	}
}

func TestAwaitHonorsCallerCancel(t *testing.T) {
	gate := NewGate(time.Millisecond, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := gate.Await(ctx, neverReady("stuck")); err == nil {
		t.Fatal("Await() = nil, want error after cancel")
	}
}
