package health

import (
	"context"
	"testing"
)

func TestMemoryCheck_Normal(t *testing.T) {
	check := MemoryCheck(MemoryCheckConfig{
		WarningThreshold:  0.99,
		CriticalThreshold: 0.995,
	})

	if check.Name != "memory" {
		t.Errorf("Name = %q, want memory", check.Name)
	}

	result := check.Func(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v (%s), want healthy", result.Status, result.Message)
	}
	if result.Details["alloc_bytes"] == nil {
		t.Error("Details missing alloc_bytes")
	}
}

func TestMemoryCheck_Critical(t *testing.T) {
	// A 1-byte budget is always exceeded.
	check := MemoryCheck(MemoryCheckConfig{MaxAlloc: 1})

	result := check.Func(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if result.Error == nil {
		t.Error("Error = nil, want ErrCheckFailed")
	}
}

func TestMemoryCheck_ThresholdDefaults(t *testing.T) {
	// Out-of-range thresholds fall back and never invert.
	check := MemoryCheck(MemoryCheckConfig{
		WarningThreshold:  1.5,
		CriticalThreshold: -2,
	})
	result := check.Func(context.Background())
	if result.Status == StatusDegraded && result.Error != nil {
		t.Errorf("unexpected result %+v", result)
	}
}
