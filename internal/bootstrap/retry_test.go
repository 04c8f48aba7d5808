package bootstrap

import (
	"context"
	"testing"
	"time"
)

func TestAttemptsFloor(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"zero defaults to one", 0, 1},
		{"negative defaults to one", -5, 1},
		{"positive kept", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RetryPolicy{MaxAttempts: tt.max}
			if got := p.attempts(); got != tt.want {
				t.Errorf("attempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSleepUsesInjectedClock(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		MaxAttempts: 3,
		Interval:    time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	if err := p.sleep(context.Background()); err != nil {
		t.Fatalf("sleep() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("slept = %v, want one 1s interval", slept)
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Interval: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.sleep(ctx); err == nil {
		t.Fatal("sleep() = nil on cancelled context, want error")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", p.Interval)
	}
}
