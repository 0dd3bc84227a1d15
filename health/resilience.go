package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/bastion/resilience"
)

// BreakerCheck synthesizes a health check from a circuit breaker's state:
// closed is healthy, half-open is degraded (the dependency is being
// probed), open is unhealthy. The check reads in-memory state only and
// never touches the dependency itself.
func BreakerCheck(name string, cb *resilience.CircuitBreaker, critical bool) Check {
	return Check{
		Name:        name,
		Critical:    critical,
		Description: "circuit breaker state for " + cb.Name(),
		Func: func(ctx context.Context) Result {
			m := cb.Metrics()
			details := map[string]any{
				"state":                m.State.String(),
				"consecutive_failures": m.ConsecutiveFailures,
				"total_calls":          m.TotalCalls,
				"total_failures":       m.TotalFailures,
				"rejected":             m.Rejected,
				"last_transition":      m.LastTransition,
			}

			switch m.State {
			case resilience.StateOpen:
				return Unhealthy("circuit open", ErrCheckFailed).WithDetails(details)
			case resilience.StateHalfOpen:
				return Degraded("circuit half-open, probing recovery").WithDetails(details)
			default:
				return Healthy("circuit closed").WithDetails(details)
			}
		},
	}
}

// BulkheadCheck synthesizes a health check from a bulkhead's utilization.
// Utilization at or above threshold reports degraded; a saturated
// bulkhead with waiters queued reports unhealthy. threshold defaults
// to 0.8 when out of (0, 1].
func BulkheadCheck(name string, b *resilience.Bulkhead, threshold float64) Check {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}

	return Check{
		Name:        name,
		Description: "bulkhead utilization for " + b.Name(),
		Func: func(ctx context.Context) Result {
			m := b.Metrics()
			utilization := float64(m.Active) / float64(m.MaxConcurrent)
			details := map[string]any{
				"active":         m.Active,
				"queued":         m.Queued,
				"max_concurrent": m.MaxConcurrent,
				"utilization":    utilization,
				"rejected":       m.Rejected,
				"timed_out":      m.TimedOut,
			}

			switch {
			case m.Available <= 0 && m.Queued > 0:
				return Unhealthy("bulkhead saturated with waiters", ErrCheckFailed).WithDetails(details)
			case utilization >= threshold:
				return Degraded(fmt.Sprintf("bulkhead utilization %.0f%%", utilization*100)).WithDetails(details)
			default:
				return Healthy(fmt.Sprintf("bulkhead utilization %.0f%%", utilization*100)).WithDetails(details)
			}
		},
	}
}
