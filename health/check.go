package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result contains the outcome of one health check run.
type Result struct {
	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time

	// Error is the error if the check failed.
	Error error
}

// Failing reports whether the result counts as a failure for
// consecutive-failure tracking and aggregation.
func (r Result) Failing() bool {
	return r.Status == StatusUnhealthy
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Check describes one scheduled health check. The zero values of Timeout
// and Interval defer to the monitor's defaults.
type Check struct {
	// Name identifies the check; registering the same name replaces the
	// previous check.
	Name string

	// Func performs the check. It must honor ctx cancellation; a run that
	// outlives its timeout is abandoned and recorded as failing.
	Func func(ctx context.Context) Result

	// Timeout bounds one run of the check.
	Timeout time.Duration

	// Interval is how often the monitor schedules the check.
	Interval time.Duration

	// Critical marks a check whose failure alone makes the whole system
	// unhealthy rather than merely degraded.
	Critical bool

	// Description documents what the check verifies.
	Description string
}

// CheckFunc wraps an error-returning probe into a Check function: nil is
// healthy, anything else is unhealthy.
func CheckFunc(fn func(ctx context.Context) error) func(ctx context.Context) Result {
	return func(ctx context.Context) Result {
		if err := fn(ctx); err != nil {
			return Unhealthy(err.Error(), err)
		}
		return Healthy("ok")
	}
}
