package resilience

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry hands out shared, named protective components: one instance
// per name for the life of the registry. The first caller's configuration
// wins; later lookups for an existing name return the existing instance
// and their configuration is ignored. This is a behavioral contract:
// unrelated call-sites naming the same dependency must share one gate.
//
// A Registry is an explicit object rather than package-global state so
// tests can use a fresh one. A process-wide Default is provided for
// convenience.
type Registry struct {
	mu        sync.RWMutex
	group     singleflight.Group
	breakers  map[string]*CircuitBreaker
	bulkheads map[string]*Bulkhead
	retries   map[string]*Retry
	limiters  map[string]*RateLimiter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		bulkheads: make(map[string]*Bulkhead),
		retries:   make(map[string]*Retry),
		limiters:  make(map[string]*RateLimiter),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// CircuitBreaker returns the breaker registered under name, creating it
// from config on first use. Concurrent first-use lookups for the same
// name create exactly one instance.
func (r *Registry) CircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	v, _, _ := r.group.Do("breaker/"+name, func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cb, ok := r.breakers[name]; ok {
			return cb, nil
		}
		config.Name = name
		cb := NewCircuitBreaker(config)
		r.breakers[name] = cb
		return cb, nil
	})
	return v.(*CircuitBreaker)
}

// Bulkhead returns the bulkhead registered under name, creating it from
// config on first use.
func (r *Registry) Bulkhead(name string, config BulkheadConfig) *Bulkhead {
	r.mu.RLock()
	b, ok := r.bulkheads[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	v, _, _ := r.group.Do("bulkhead/"+name, func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if b, ok := r.bulkheads[name]; ok {
			return b, nil
		}
		config.Name = name
		b := NewBulkhead(config)
		r.bulkheads[name] = b
		return b, nil
	})
	return v.(*Bulkhead)
}

// Retry returns the retry handler registered under name, creating it from
// config on first use.
func (r *Registry) Retry(name string, config RetryConfig) *Retry {
	r.mu.RLock()
	rt, ok := r.retries[name]
	r.mu.RUnlock()
	if ok {
		return rt
	}

	v, _, _ := r.group.Do("retry/"+name, func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if rt, ok := r.retries[name]; ok {
			return rt, nil
		}
		config.Name = name
		rt := NewRetry(config)
		r.retries[name] = rt
		return rt, nil
	})
	return v.(*Retry)
}

// RateLimiter returns the rate limiter registered under name, creating it
// from config on first use.
func (r *Registry) RateLimiter(name string, config RateLimiterConfig) *RateLimiter {
	r.mu.RLock()
	rl, ok := r.limiters[name]
	r.mu.RUnlock()
	if ok {
		return rl
	}

	v, _, _ := r.group.Do("limiter/"+name, func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if rl, ok := r.limiters[name]; ok {
			return rl, nil
		}
		config.Name = name
		rl := NewRateLimiter(config)
		r.limiters[name] = rl
		return rl, nil
	})
	return v.(*RateLimiter)
}

// Names returns the sorted names of all registered instances, across
// component types, without duplicates.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for name := range r.breakers {
		seen[name] = struct{}{}
	}
	for name := range r.bulkheads {
		seen[name] = struct{}{}
	}
	for name := range r.retries {
		seen[name] = struct{}{}
	}
	for name := range r.limiters {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops all registered instances, closing any that hold background
// resources. Intended as a test and operational hook; callers holding
// references to old instances keep working against the orphaned gates.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bulkheads {
		b.Close()
	}
	r.breakers = make(map[string]*CircuitBreaker)
	r.bulkheads = make(map[string]*Bulkhead)
	r.retries = make(map[string]*Retry)
	r.limiters = make(map[string]*RateLimiter)
}

// Snapshot captures the metrics of every registered breaker and bulkhead,
// in a shape an external observability collector can consume directly.
type Snapshot struct {
	Breakers  []CircuitBreakerMetrics
	Bulkheads []BulkheadMetrics
}

// Snapshot returns a point-in-time view of all registered gate metrics.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	bulkheads := make([]*Bulkhead, 0, len(r.bulkheads))
	for _, b := range r.bulkheads {
		bulkheads = append(bulkheads, b)
	}
	r.mu.RUnlock()

	snap := Snapshot{
		Breakers:  make([]CircuitBreakerMetrics, 0, len(breakers)),
		Bulkheads: make([]BulkheadMetrics, 0, len(bulkheads)),
	}
	for _, cb := range breakers {
		snap.Breakers = append(snap.Breakers, cb.Metrics())
	}
	for _, b := range bulkheads {
		snap.Bulkheads = append(snap.Bulkheads, b.Metrics())
	}

	sort.Slice(snap.Breakers, func(i, j int) bool { return snap.Breakers[i].Name < snap.Breakers[j].Name })
	sort.Slice(snap.Bulkheads, func(i, j int) bool { return snap.Bulkheads[i].Name < snap.Bulkheads[j].Name })
	return snap
}
