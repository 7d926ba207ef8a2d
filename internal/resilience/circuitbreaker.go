// Package resilience provides circuit breaker and provider failover primitives
// for the speech and language backends.
//
// The central type is [CircuitBreaker], a three-state breaker (closed, open,
// half-open) that keeps a flapping STT, TTS or LLM backend from stalling
// every scoring request. [FallbackGroup] composes several instances of one
// provider type with per-entry breakers so that a failing primary is
// bypassed in favour of healthy fallbacks. Errors caused by the request
// itself (empty audio, blank text, a cancelled context) neither trip a
// breaker nor trigger failover.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Enough
	// successful probes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the configuration-style name of the state.
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

// Breaker defaults applied by [NewCircuitBreaker] to zero config fields.
const (
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
	DefaultHalfOpenMax  = 3
)

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state change notifications, usually the
	// provider name ("openai", "deepgram").
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: [DefaultMaxFailures].
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: [DefaultResetTimeout].
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget of the half-open state and the number
	// of successes needed to close again. Default: [DefaultHalfOpenMax].
	HalfOpenMax int

	// Ignore reports errors that say nothing about backend health. They are
	// returned to the caller without being counted. Nil counts every error.
	Ignore func(error) bool

	// OnStateChange, when set, is called after every transition, outside the
	// breaker's lock.
	OnStateChange func(name string, from, to State)

	// Now replaces time.Now. Tests use it to move past the reset timeout.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // time of the failure that last opened the breaker
	probes   int       // half-open calls admitted
	passed   int       // half-open calls that succeeded
}

// NewCircuitBreaker creates a closed [CircuitBreaker]. Zero config fields
// take the package defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = DefaultHalfOpenMax
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// transition is a state change waiting to be announced once the lock is
// released.
type transition struct {
	from, to State
}

// Execute runs fn if the breaker admits the call and records its outcome.
// Rejected calls return [ErrCircuitOpen] without running fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, t, err := cb.admit()
	cb.announce(t)
	if err != nil {
		return err
	}

	err = fn()

	cb.announce(cb.record(probe, err))
	return err
}

// admit decides whether a call may run and whether it counts as a probe.
func (cb *CircuitBreaker) admit() (probe bool, t *transition, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, nil, ErrCircuitOpen
		}
		t = cb.setState(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, t, ErrCircuitOpen
		}
		cb.probes++
		return true, t, nil
	}
	return false, t, nil
}

// record books the outcome of an admitted call.
func (cb *CircuitBreaker) record(probe bool, err error) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.cfg.Ignore != nil && cb.cfg.Ignore(err) {
		if probe && cb.state == StateHalfOpen {
			// The probe told us nothing; give the slot back.
			cb.probes--
		}
		return nil
	}

	// A probe outcome only counts if no other probe moved the state on.
	if probe && cb.state != StateHalfOpen {
		return nil
	}

	switch {
	case err != nil && probe:
		cb.openedAt = cb.cfg.Now()
		return cb.setState(StateOpen)
	case err != nil:
		cb.failures++
		if cb.failures < cb.cfg.MaxFailures {
			return nil
		}
		cb.openedAt = cb.cfg.Now()
		return cb.setState(StateOpen)
	case probe:
		cb.passed++
		if cb.passed < cb.cfg.HalfOpenMax {
			return nil
		}
		return cb.setState(StateClosed)
	default:
		cb.failures = 0
		return nil
	}
}

// setState moves to next, resets the counters of the entered state and
// logs. Must be called with cb.mu held.
func (cb *CircuitBreaker) setState(next State) *transition {
	prev := cb.state
	if prev == next {
		return nil
	}
	cb.state = next
	cb.probes, cb.passed = 0, 0
	if next == StateClosed {
		cb.failures = 0
	}

	switch next {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "from", prev, "consecutive_failures", cb.failures)
	default:
		slog.Info("circuit breaker state changed", "name", cb.cfg.Name, "from", prev, "to", next)
	}
	return &transition{from: prev, to: next}
}

func (cb *CircuitBreaker) announce(t *transition) {
	if t == nil || cb.cfg.OnStateChange == nil {
		return
	}
	cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
}

// Name returns the label the breaker was created with.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// State returns the current [State]. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t := cb.setState(StateClosed)
	cb.failures = 0
	cb.mu.Unlock()
	cb.announce(t)
}
