package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckConfig configures the memory watermark check.
type MemoryCheckConfig struct {
	// WarningThreshold is the fraction of MaxAlloc that reports degraded.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of MaxAlloc that reports unhealthy.
	// Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the allocation budget in bytes. Zero falls back to the
	// runtime's current Sys figure, which makes the check informational
	// rather than a hard watermark.
	MaxAlloc uint64
}

// MemoryCheck returns a check reporting process memory pressure against
// a watermark.
func MemoryCheck(config MemoryCheckConfig) Check {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}

	return Check{
		Name:        "memory",
		Description: "process memory usage watermark",
		Func: func(ctx context.Context) Result {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)

			maxAlloc := config.MaxAlloc
			if maxAlloc == 0 {
				maxAlloc = stats.Sys
			}

			usage := float64(stats.Alloc) / float64(maxAlloc)
			details := map[string]any{
				"alloc_bytes":   stats.Alloc,
				"max_alloc":     maxAlloc,
				"usage_percent": usage * 100,
				"heap_in_use":   stats.HeapInuse,
				"num_gc":        stats.NumGC,
				"goroutines":    runtime.NumGoroutine(),
			}

			switch {
			case usage >= config.CriticalThreshold:
				return Unhealthy(
					fmt.Sprintf("memory usage critical: %.1f%%", usage*100),
					ErrCheckFailed,
				).WithDetails(details)
			case usage >= config.WarningThreshold:
				return Degraded(
					fmt.Sprintf("memory usage high: %.1f%%", usage*100),
				).WithDetails(details)
			default:
				return Healthy(
					fmt.Sprintf("memory usage normal: %.1f%%", usage*100),
				).WithDetails(details)
			}
		},
	}
}
