package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/bastion/observe"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is fast-failing all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs, metrics, and registries.
	Name string

	// FailureThreshold is the number of consecutive counted failures
	// before the circuit opens. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successful trial
	// calls required to close a half-open circuit. Default: 1
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before allowing
	// trial traffic. Default: 30 seconds
	OpenTimeout time.Duration

	// RequestTimeout bounds each wrapped call. Zero disables the
	// per-call timeout.
	RequestTimeout time.Duration

	// HalfOpenMaxCalls is the max number of in-flight trial calls while
	// half-open; excess callers fast-fail with ErrCircuitOpen. Default: 1
	HalfOpenMaxCalls int

	// Classifier decides which failure kinds count toward the threshold.
	// Default: DefaultClassifier (everything except validation errors).
	Classifier Classifier

	// OnStateChange is called after each state transition. It runs with
	// the breaker's lock held and must not call back into the breaker.
	OnStateChange func(from, to State)

	// Logger, if set, receives state transition logs.
	Logger observe.Logger

	// Sink, if set, receives call, transition, and rejection telemetry.
	Sink Sink

	// Clock overrides the time source; intended for tests.
	// Default: time.Now
	Clock func() time.Time
}

// CircuitBreaker fails fast once a protected dependency exceeds a failure
// threshold, and periodically lets trial traffic through to detect
// recovery. Transitions are atomic with respect to concurrent callers:
// every call observes a single consistent state.
type CircuitBreaker struct {
	config  CircuitBreakerConfig
	timeout *Timeout
	now     func() time.Time

	mu              sync.Mutex
	state           State
	consecFailures  int
	consecSuccesses int
	halfOpenCalls   int
	halfOpenGen     uint64
	openedAt        time.Time
	lastTransition  time.Time

	totalCalls     int64
	totalFailures  int64
	totalSuccesses int64
	rejected       int64
	avgResponse    time.Duration
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.Classifier == nil {
		config.Classifier = DefaultClassifier
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	cb := &CircuitBreaker{
		config: config,
		now:    config.Clock,
		state:  StateClosed,
	}
	if config.RequestTimeout > 0 {
		cb.timeout = NewTimeout(TimeoutConfig{Timeout: config.RequestTimeout})
	}
	return cb
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation through the circuit breaker. If the circuit
// is open the operation is never invoked and ErrCircuitOpen is returned.
// When the operation runs and fails, its error is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	gen, admitErr := cb.beforeCall(ctx)
	if admitErr != nil {
		return admitErr
	}

	start := cb.now()
	err := cb.invoke(ctx, op)
	elapsed := cb.now().Sub(start)

	cb.afterCall(gen, err, elapsed)

	if cb.config.Sink != nil {
		cb.config.Sink.RecordCall(ctx, cb.config.Name, elapsed, err)
	}
	return err
}

// Go runs the operation through the breaker on its own goroutine. The
// returned channel is buffered and delivers exactly one result.
func (cb *CircuitBreaker) Go(ctx context.Context, op func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, op)
	}()
	return done
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Reset returns the circuit breaker to the closed state and clears the
// consecutive counters. Cumulative totals are preserved. Intended as an
// operational and test hook.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.consecFailures = 0
	cb.consecSuccesses = 0
	cb.halfOpenCalls = 0
}

func (cb *CircuitBreaker) invoke(ctx context.Context, op func(context.Context) error) error {
	if cb.timeout == nil {
		return op(ctx)
	}
	return cb.timeout.Execute(ctx, op)
}

// beforeCall admits or rejects the call. For a call admitted as a
// half-open trial it returns the current half-open generation, so the
// completion is only counted against the period that admitted it.
func (cb *CircuitBreaker) beforeCall(ctx context.Context) (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var gen uint64
	switch cb.stateLocked() {
	case StateOpen:
		cb.rejected++
		if cb.config.Sink != nil {
			cb.config.Sink.RecordRejection(ctx, cb.config.Name, "circuit_open")
		}
		return 0, ErrCircuitOpen

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			cb.rejected++
			if cb.config.Sink != nil {
				cb.config.Sink.RecordRejection(ctx, cb.config.Name, "half_open_saturated")
			}
			return 0, ErrCircuitOpen
		}
		cb.halfOpenCalls++
		gen = cb.halfOpenGen
	}

	cb.totalCalls++
	return gen, nil
}

func (cb *CircuitBreaker) afterCall(gen uint64, err error, elapsed time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.recordLatencyLocked(elapsed)

	counted := err != nil && cb.config.Classifier(Classify(err))
	if err != nil {
		cb.totalFailures++
	} else {
		cb.totalSuccesses++
	}

	switch cb.state {
	case StateClosed:
		switch {
		case counted:
			cb.consecFailures++
			cb.consecSuccesses = 0
			if cb.consecFailures >= cb.config.FailureThreshold {
				cb.transitionLocked(StateOpen)
			}
		case err == nil:
			cb.consecFailures = 0
			cb.consecSuccesses++
		}
		// Uncounted failures (e.g. validation) leave the trip counter alone.

	case StateHalfOpen:
		if gen != cb.halfOpenGen {
			// A call admitted before this half-open period. It holds no
			// trial slot here and its outcome is not probe evidence.
			return
		}
		cb.halfOpenCalls--
		switch {
		case counted:
			// Failed probe: back to open, restarting the open timer.
			cb.transitionLocked(StateOpen)
		case err == nil:
			cb.consecSuccesses++
			if cb.consecSuccesses >= cb.config.SuccessThreshold {
				cb.transitionLocked(StateClosed)
			}
		}
	}
}

// stateLocked returns the current state, promoting Open to HalfOpen once
// the open timer has elapsed. Callers must hold cb.mu.
func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.OpenTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.lastTransition = cb.now()

	switch to {
	case StateOpen:
		cb.openedAt = cb.lastTransition
	case StateHalfOpen:
		cb.halfOpenGen++
		cb.halfOpenCalls = 0
		cb.consecSuccesses = 0
	case StateClosed:
		cb.consecFailures = 0
		cb.consecSuccesses = 0
	}

	if cb.config.Logger != nil {
		cb.config.Logger.Warn(context.Background(), "circuit state changed",
			observe.Field{Key: "breaker", Value: cb.config.Name},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	}
	if cb.config.Sink != nil {
		cb.config.Sink.RecordStateChange(context.Background(), cb.config.Name, from, to)
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// recordLatencyLocked folds one call duration into the rolling average
// (EWMA, alpha 1/8). Callers must hold cb.mu.
func (cb *CircuitBreaker) recordLatencyLocked(elapsed time.Duration) {
	if cb.avgResponse == 0 {
		cb.avgResponse = elapsed
		return
	}
	cb.avgResponse += (elapsed - cb.avgResponse) / 8
}

// Metrics returns a read-only snapshot of the breaker's counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		Name:                 cb.config.Name,
		State:                cb.stateLocked(),
		ConsecutiveFailures:  cb.consecFailures,
		ConsecutiveSuccesses: cb.consecSuccesses,
		TotalCalls:           cb.totalCalls,
		TotalFailures:        cb.totalFailures,
		TotalSuccesses:       cb.totalSuccesses,
		Rejected:             cb.rejected,
		AverageResponse:      cb.avgResponse,
		LastTransition:       cb.lastTransition,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Name                 string
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TotalCalls           int64
	TotalFailures        int64
	TotalSuccesses       int64
	Rejected             int64
	AverageResponse      time.Duration
	LastTransition       time.Time
}
