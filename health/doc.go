// Package health runs independently scheduled health checks and
// aggregates their last-known results into one system status.
//
// Each Check carries its own interval, timeout, and criticality. A
// Monitor schedules registered checks, keeps bounded per-check history,
// and recomputes the aggregate after every completed run: a failing
// critical check makes the system unhealthy, a failing non-critical
// check (or any degraded check) makes it degraded.
//
//	monitor := health.NewMonitor(health.MonitorConfig{})
//	monitor.Register(health.Check{
//	    Name:     "database",
//	    Critical: true,
//	    Interval: 15 * time.Second,
//	    Func: health.CheckFunc(func(ctx context.Context) error {
//	        return db.PingContext(ctx)
//	    }),
//	})
//	monitor.Start(30 * time.Second)
//	defer monitor.Stop()
//
// Reading the status never blocks on a running check:
//
//	snap := monitor.Status()
//
// Checks can be synthesized from resilience gate metrics (BreakerCheck,
// BulkheadCheck) so the dependency's observed failure history feeds the
// health surface without extra probing. HTTP handlers for liveness,
// readiness, and detailed status serve the snapshot directly.
package health
