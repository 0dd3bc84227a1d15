package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestExhaustedError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ExhaustedError{Attempts: 4, Err: cause}

	want := "resilience: 4 attempts exhausted: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	var exhausted *ExhaustedError
	wrapped := fmt.Errorf("call failed: %w", err)
	if !errors.As(wrapped, &exhausted) {
		t.Fatal("errors.As through wrapping = false, want true")
	}
	if exhausted.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", exhausted.Attempts)
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrCircuitOpen,
		ErrRequestTimeout,
		ErrBulkheadRejected,
		ErrBulkheadTimeout,
		ErrRateLimitExceeded,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
