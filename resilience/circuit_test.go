package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock lets breaker tests drive the open timer deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func failNTimes(t *testing.T, cb *CircuitBreaker, n int, err error) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return err
		})
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.SuccessThreshold != 1 {
		t.Errorf("SuccessThreshold = %d, want 1", cb.config.SuccessThreshold)
	}
	if cb.config.OpenTimeout != 30*time.Second {
		t.Errorf("OpenTimeout = %v, want 30s", cb.config.OpenTimeout)
	}
	if cb.config.HalfOpenMaxCalls != 1 {
		t.Errorf("HalfOpenMaxCalls = %d, want 1", cb.config.HalfOpenMaxCalls)
	}
}

func TestCircuitBreaker_OpenAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	})

	testErr := errors.New("test error")

	// First 2 failures should not open
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
		if err != testErr {
			t.Errorf("Execute() error = %v, want %v", err, testErr)
		}
		if cb.State() != StateClosed {
			t.Errorf("After %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	// Third failure should open
	failNTimes(t, cb, 1, testErr)
	if cb.State() != StateOpen {
		t.Errorf("After 3 failures, state = %v, want open", cb.State())
	}

	// Next request fast-fails without invoking the operation
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("operation must not run while circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() when open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	// Not yet: one tick before the timer elapses
	clock.Advance(999 * time.Millisecond)
	if cb.State() != StateOpen {
		t.Errorf("State before OpenTimeout = %v, want open", cb.State())
	}

	clock.Advance(time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Errorf("State after OpenTimeout = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_SuccessThresholdCloses(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Second,
		HalfOpenMaxCalls: 2,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	clock.Advance(time.Second)

	// First trial success: still half-open
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateHalfOpen {
		t.Errorf("After 1 success, state = %v, want half-open", cb.State())
	}

	// Second trial success: closed
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("After 2 successes, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	clock.Advance(time.Second)

	if cb.State() != StateHalfOpen {
		t.Fatalf("State = %v, want half-open", cb.State())
	}

	// Failed probe returns the breaker to open and restarts the timer.
	failNTimes(t, cb, 1, errors.New("still down"))
	if cb.State() != StateOpen {
		t.Fatalf("State after failed probe = %v, want open", cb.State())
	}

	// The open timer restarted: just shy of a full OpenTimeout stays open.
	clock.Advance(999 * time.Millisecond)
	if cb.State() != StateOpen {
		t.Errorf("State = %v, want open (timer must restart on probe failure)", cb.State())
	}
	clock.Advance(time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Errorf("State = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenLimitsTrialCalls(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		HalfOpenMaxCalls: 1,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := cb.Go(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// Second trial while the first is in flight is rejected.
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("second trial call must not run")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial call error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ValidationErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	badInput := WithKind(KindValidation, errors.New("bad request"))
	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return badInput
		})
		if !errors.Is(err, badInput) {
			t.Errorf("Execute() error = %v, want the validation error passed through", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("State after validation failures = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_RequestTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
		RequestTimeout:   20 * time.Millisecond,
	})

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("Execute() = %v, want ErrRequestTimeout", err)
	}

	// The timeout counted as a failure and tripped the breaker.
	if cb.State() != StateOpen {
		t.Errorf("State = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	})

	testErr := errors.New("test error")

	failNTimes(t, cb, 2, testErr)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	failNTimes(t, cb, 2, testErr)

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed (success must reset the counter)", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []struct{ from, to State }

	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		Clock:            clock.Now,
		OnStateChange: func(from, to State) {
			mu.Lock()
			transitions = append(transitions, struct{ from, to State }{from, to})
			mu.Unlock()
		},
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	clock.Advance(time.Second)
	_ = cb.State()
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })

	mu.Lock()
	defer mu.Unlock()

	want := []struct{ from, to State }{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(transitions) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(transitions), len(want))
	}
	for i, tr := range transitions {
		if tr != want[i] {
			t.Errorf("transition[%d] = %v -> %v, want %v -> %v",
				i, tr.from, tr.to, want[i].from, want[i].to)
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Hour,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("After reset, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Metrics(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "payments",
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	})

	testErr := errors.New("test error")
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	failNTimes(t, cb, 2, testErr)
	// Open now: one rejected call.
	failNTimes(t, cb, 1, testErr)

	m := cb.Metrics()
	if m.Name != "payments" {
		t.Errorf("Metrics.Name = %q, want payments", m.Name)
	}
	if m.State != StateOpen {
		t.Errorf("Metrics.State = %v, want open", m.State)
	}
	if m.TotalCalls != 3 {
		t.Errorf("Metrics.TotalCalls = %d, want 3", m.TotalCalls)
	}
	if m.TotalFailures != 2 {
		t.Errorf("Metrics.TotalFailures = %d, want 2", m.TotalFailures)
	}
	if m.TotalSuccesses != 1 {
		t.Errorf("Metrics.TotalSuccesses = %d, want 1", m.TotalSuccesses)
	}
	if m.Rejected != 1 {
		t.Errorf("Metrics.Rejected = %d, want 1", m.Rejected)
	}
	if m.LastTransition.IsZero() {
		t.Error("Metrics.LastTransition is zero, want transition timestamp")
	}
}

func TestCircuitBreaker_EndToEndRecovery(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      time.Second,
		HalfOpenMaxCalls: 2,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 3, errors.New("down"))
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	// Within the window: fast fail, no invocation.
	clock.Advance(500 * time.Millisecond)
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("operation must not run")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() = %v, want ErrCircuitOpen", err)
	}

	// After the window: trial traffic, then closed after 2 successes.
	clock.Advance(600 * time.Millisecond)
	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("trial call %d error = %v", i+1, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_ConcurrentStateConsistency(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 50,
		OpenTimeout:      time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = cb.Execute(context.Background(), func(ctx context.Context) error {
					if fail {
						return errors.New("boom")
					}
					return nil
				})
			}
		}(i%2 == 0)
	}
	wg.Wait()

	m := cb.Metrics()
	if got := m.TotalFailures + m.TotalSuccesses; got != m.TotalCalls {
		t.Errorf("TotalFailures+TotalSuccesses = %d, want TotalCalls = %d", got, m.TotalCalls)
	}
}

func TestCircuitBreaker_StaleTrialCallDoesNotLeakSlot(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 5,
		OpenTimeout:      time.Second,
		HalfOpenMaxCalls: 2,
		Clock:            clock.Now,
	})

	failNTimes(t, cb, 1, errors.New("boom"))
	clock.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State = %v, want half-open", cb.State())
	}

	// Trial call from the first half-open period, held in flight.
	aStarted := make(chan struct{})
	aRelease := make(chan struct{})
	aDone := cb.Go(context.Background(), func(ctx context.Context) error {
		close(aStarted)
		<-aRelease
		return nil
	})
	<-aStarted

	// A failed probe reopens the circuit while the first call is running.
	failNTimes(t, cb, 1, errors.New("boom"))
	if cb.State() != StateOpen {
		t.Fatalf("State after failed probe = %v, want open", cb.State())
	}

	// The next half-open period starts with a full trial budget.
	clock.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State = %v, want half-open", cb.State())
	}

	close(aRelease)
	if err := <-aDone; err != nil {
		t.Fatalf("stale trial call error = %v, want nil", err)
	}

	// The stale completion must not free a slot in the new period:
	// exactly HalfOpenMaxCalls of the next callers are admitted.
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			results <- cb.Execute(context.Background(), func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				inFlight.Add(-1)
				return nil
			})
		}()
	}

	select {
	case err := <-results:
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("third caller error = %v, want ErrCircuitOpen", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no caller was rejected; the trial budget leaked")
	}

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Errorf("trial call error = %v, want nil", err)
		}
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("concurrent trial calls = %d, want at most 2", got)
	}
}
