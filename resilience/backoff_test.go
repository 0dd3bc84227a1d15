package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffSource_Bounds(t *testing.T) {
	factory := NewBackoffSource(10*time.Millisecond, 100*time.Millisecond, 2.0)
	src := factory()

	// The implementation randomizes each interval; it must stay
	// non-negative and near the configured ceiling.
	for attempt := 1; attempt <= 20; attempt++ {
		d := src.Next(attempt)
		if d < 0 {
			t.Fatalf("Next(%d) = %v, want >= 0", attempt, d)
		}
		if d > 200*time.Millisecond {
			t.Fatalf("Next(%d) = %v, want bounded near MaxInterval", attempt, d)
		}
	}
}

func TestBackoffSource_FreshStatePerCall(t *testing.T) {
	factory := NewBackoffSource(time.Millisecond, time.Second, 2.0)

	a, b := factory(), factory()
	if a == b {
		t.Fatal("factory returned a shared source")
	}

	// Advancing one source must not advance the other.
	for i := 1; i <= 10; i++ {
		a.Next(i)
	}
	if d := b.Next(1); d > 10*time.Millisecond {
		t.Errorf("fresh source first delay = %v, want near InitialInterval", d)
	}
}

func TestRetry_WithBackoffSource(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxAttempts: 3,
		Source:      NewBackoffSource(time.Millisecond, 5*time.Millisecond, 2.0),
	})

	calls := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Errorf("Execute() error = %T, want *ExhaustedError", err)
	}
}
