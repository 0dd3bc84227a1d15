package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/bastion/observe"
)

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// DefaultInterval is used for checks that do not set their own.
	// Default: 30 seconds
	DefaultInterval time.Duration

	// DefaultTimeout bounds checks that do not set their own.
	// Default: 5 seconds
	DefaultTimeout time.Duration

	// HistorySize is the number of results retained per check.
	// Default: 16
	HistorySize int

	// Logger, if set, receives monitor lifecycle and status-change logs.
	Logger observe.Logger
}

// Monitor runs registered checks on their own schedules and aggregates
// the latest results into one system status. The aggregate is recomputed
// after every completed check; reading it never blocks on a running check.
type Monitor struct {
	config MonitorConfig

	mu      sync.RWMutex
	checks  map[string]*checkState
	overall Status
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup

	// schedulers maps a check name to the generation of the scheduler
	// goroutine that owns it. A scheduler whose generation no longer
	// matches has been disowned and exits on its next tick.
	schedulers map[string]uint64
	schedSeq   uint64
}

// checkState is the per-check bookkeeping the monitor maintains.
type checkState struct {
	check Check

	last        Result
	lastRun     time.Time
	consecFails int
	runs        int64
	history     []Result // ring, capacity HistorySize
	historyNext int
	historyFull bool
}

// NewMonitor creates a new health monitor.
func NewMonitor(config MonitorConfig) *Monitor {
	// Apply defaults
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = 30 * time.Second
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 16
	}

	return &Monitor{
		config:     config,
		checks:     make(map[string]*checkState),
		schedulers: make(map[string]uint64),
	}
}

// Register adds a check, replacing any existing check with the same name.
// Replacement takes effect on the check's next scheduled run; bookkeeping
// for the name (history, counters) is preserved across replacement. A
// check registered while the monitor is running is scheduled immediately.
func (m *Monitor) Register(check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.checks[check.Name]
	if !ok {
		st = &checkState{history: make([]Result, m.config.HistorySize)}
		m.checks[check.Name] = st
	}
	st.check = check

	if _, live := m.schedulers[check.Name]; m.started && !live {
		m.spawnLocked(check.Name)
	}
}

// Unregister removes a check and disowns its scheduler, which exits on
// its next tick without running the check again.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
	delete(m.schedulers, name)
}

// spawnLocked starts a scheduler goroutine owning the named check.
// Callers must hold m.mu with the monitor started.
func (m *Monitor) spawnLocked(name string) {
	m.schedSeq++
	m.schedulers[name] = m.schedSeq
	m.wg.Add(1)
	go m.schedule(name, m.schedSeq, m.stop)
}

// Start begins scheduling all registered checks. Idempotent: calling it
// again while running does not duplicate schedulers. defaultInterval, if
// positive, overrides the configured default for checks without their own.
func (m *Monitor) Start(defaultInterval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	if defaultInterval > 0 {
		m.config.DefaultInterval = defaultInterval
	}
	m.stop = make(chan struct{})

	for name := range m.checks {
		m.spawnLocked(name)
	}

	if m.config.Logger != nil {
		m.config.Logger.Info(context.Background(), "health monitor started",
			observe.Field{Key: "checks", Value: len(m.checks)},
			observe.Field{Key: "default_interval", Value: m.config.DefaultInterval.String()},
		)
	}
}

// Stop halts all schedulers and waits for them to exit. An in-flight
// check finishes or is cut at its own timeout. The monitor can be
// started again afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()

	if m.config.Logger != nil {
		m.config.Logger.Info(context.Background(), "health monitor stopped")
	}
}

// schedule runs one check on its interval until stop closes, the check
// is unregistered, or ownership passes to a newer scheduler. The check
// definition is re-read every tick so Register-replacement takes effect
// without restarting the scheduler.
func (m *Monitor) schedule(name string, gen uint64, stop <-chan struct{}) {
	defer func() {
		m.mu.Lock()
		if m.schedulers[name] == gen {
			delete(m.schedulers, name)
		}
		m.mu.Unlock()
		m.wg.Done()
	}()

	// First run happens promptly so status is populated at startup.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		if !m.owns(name, gen) {
			return
		}
		if !m.runScheduled(name) {
			return // unregistered
		}
		timer.Reset(m.intervalFor(name))
	}
}

func (m *Monitor) owns(name string, gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedulers[name] == gen
}

func (m *Monitor) intervalFor(name string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.checks[name]
	if !ok {
		return 0
	}
	if st.check.Interval > 0 {
		return st.check.Interval
	}
	return m.config.DefaultInterval
}

// runScheduled executes one scheduled run. It reports false when the
// check has been unregistered.
func (m *Monitor) runScheduled(name string) bool {
	m.mu.RLock()
	st, ok := m.checks[name]
	var check Check
	if ok {
		check = st.check
	}
	m.mu.RUnlock()
	if !ok {
		return false
	}

	result := m.execute(context.Background(), check)
	m.record(name, result)
	return true
}

// Run executes a single named check on demand, records the result, and
// returns it.
func (m *Monitor) Run(ctx context.Context, name string) (Result, error) {
	m.mu.RLock()
	st, ok := m.checks[name]
	var check Check
	if ok {
		check = st.check
	}
	m.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckNotFound
	}

	result := m.execute(ctx, check)
	m.record(name, result)
	return result, nil
}

// RunAll executes every registered check concurrently, records the
// results, and returns them by name.
func (m *Monitor) RunAll(ctx context.Context) map[string]Result {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, st := range m.checks {
		checks[name] = st.check
	}
	m.mu.RUnlock()

	results := make(map[string]Result, len(checks))
	var wg sync.WaitGroup
	var resMu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			result := m.execute(ctx, check)
			m.record(name, result)
			resMu.Lock()
			results[name] = result
			resMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return results
}

// execute runs one check bounded by its timeout. A run that outlives the
// timeout is abandoned; its eventual result is dropped.
func (m *Monitor) execute(ctx context.Context, check Check) Result {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = m.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- check.Func(ctx)
	}()

	select {
	case result := <-resultCh:
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// record folds one result into the check's bookkeeping and recomputes
// the aggregate status.
func (m *Monitor) record(name string, result Result) {
	m.mu.Lock()

	st, ok := m.checks[name]
	if !ok {
		m.mu.Unlock()
		return
	}

	st.last = result
	st.lastRun = result.Timestamp
	st.runs++
	if result.Failing() {
		st.consecFails++
	} else {
		st.consecFails = 0
	}

	st.history[st.historyNext] = result
	st.historyNext = (st.historyNext + 1) % len(st.history)
	if st.historyNext == 0 {
		st.historyFull = true
	}

	prev := m.overall
	m.overall = m.aggregateLocked()
	changed := m.overall != prev
	overall := m.overall
	m.mu.Unlock()

	if changed && m.config.Logger != nil {
		m.config.Logger.Warn(context.Background(), "system health changed",
			observe.Field{Key: "status", Value: overall.String()},
			observe.Field{Key: "check", Value: name},
			observe.Field{Key: "check_status", Value: result.Status.String()},
		)
	}
}

// aggregateLocked computes the overall status from last-known results.
// Checks that have never run are excluded. Callers must hold m.mu.
func (m *Monitor) aggregateLocked() Status {
	overall := StatusHealthy
	for _, st := range m.checks {
		if st.lastRun.IsZero() {
			continue
		}
		switch st.last.Status {
		case StatusUnhealthy:
			if st.check.Critical {
				return StatusUnhealthy
			}
			overall = StatusDegraded
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// CheckStatus is the last-known state of one registered check.
type CheckStatus struct {
	Name                string
	Status              Status
	Message             string
	Critical            bool
	LastRun             time.Time
	Duration            time.Duration
	ConsecutiveFailures int
	Runs                int64
	Error               error
}

// Snapshot is a point-in-time view of system health.
type Snapshot struct {
	Overall   Status
	Checks    map[string]CheckStatus
	Healthy   int
	Degraded  int
	Unhealthy int
}

// Status returns the last-known snapshot. It never blocks on a running
// check; a check that has not completed a run yet appears with zero
// LastRun and does not contribute to the aggregate or the counts.
func (m *Monitor) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Overall: m.aggregateLocked(),
		Checks:  make(map[string]CheckStatus, len(m.checks)),
	}

	for name, st := range m.checks {
		snap.Checks[name] = CheckStatus{
			Name:                name,
			Status:              st.last.Status,
			Message:             st.last.Message,
			Critical:            st.check.Critical,
			LastRun:             st.lastRun,
			Duration:            st.last.Duration,
			ConsecutiveFailures: st.consecFails,
			Runs:                st.runs,
			Error:               st.last.Error,
		}
		if st.lastRun.IsZero() {
			continue
		}
		switch st.last.Status {
		case StatusHealthy:
			snap.Healthy++
		case StatusDegraded:
			snap.Degraded++
		case StatusUnhealthy:
			snap.Unhealthy++
		}
	}
	return snap
}

// History returns the retained results for a check, oldest first.
func (m *Monitor) History(name string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.checks[name]
	if !ok {
		return nil, ErrCheckNotFound
	}

	var out []Result
	if st.historyFull {
		out = append(out, st.history[st.historyNext:]...)
		out = append(out, st.history[:st.historyNext]...)
	} else {
		out = append(out, st.history[:st.historyNext]...)
	}
	return out, nil
}

// Names returns the names of all registered checks.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	return names
}
