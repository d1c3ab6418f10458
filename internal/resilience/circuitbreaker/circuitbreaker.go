// Package circuitbreaker keeps one breaker per upstream name. Each breaker's
// state is an immutable snapshot swapped with compare-and-swap, so callers of
// unrelated upstreams never contend and concurrent callers of the same
// upstream never lose an update.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultResetTimeout     = 30 * time.Second
)

// Config tunes every breaker created by a CircuitBreaker. Zero values take
// the defaults: 5 consecutive failures, 30s open window, time.Now.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	Now              func() time.Time
}

// snapshot is never mutated after it has been published.
type snapshot struct {
	state     State
	failures  int
	openUntil time.Time
}

var closed = &snapshot{state: StateClosed}

type breaker struct {
	current atomic.Pointer[snapshot]
}

// CircuitBreaker tracks health per upstream and rejects calls to upstreams
// whose breaker is open.
type CircuitBreaker struct {
	cfg      Config
	breakers sync.Map // upstream name -> *breaker
}

// NewCircuitBreaker creates a CircuitBreaker with cfg, filling in defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

func (cb *CircuitBreaker) get(upstream string) *breaker {
	if b, ok := cb.breakers.Load(upstream); ok {
		return b.(*breaker)
	}
	b := &breaker{}
	b.current.Store(closed)
	actual, _ := cb.breakers.LoadOrStore(upstream, b)
	return actual.(*breaker)
}

// AllowRequest reports whether a call to upstream may go out. Once the open
// window has elapsed exactly one caller wins the move to HalfOpen and is let
// through as the trial call; everyone else is rejected until it reports.
func (cb *CircuitBreaker) AllowRequest(upstream string) bool {
	b := cb.get(upstream)
	for {
		s := b.current.Load()
		switch s.state {
		case StateClosed:
			return true
		case StateOpen:
			if cb.cfg.Now().Before(s.openUntil) {
				return false
			}
			if b.current.CompareAndSwap(s, &snapshot{state: StateHalfOpen}) {
				return true
			}
		default:
			return false
		}
	}
}

// RecordSuccess records a successful call. It returns true when the success
// closed a breaker that was not closed before.
func (cb *CircuitBreaker) RecordSuccess(upstream string) bool {
	b := cb.get(upstream)
	for {
		s := b.current.Load()
		if s.state == StateClosed && s.failures == 0 {
			return false
		}
		if s.state == StateOpen {
			// A straggler that started before the breaker opened.
			return false
		}
		if b.current.CompareAndSwap(s, closed) {
			return s.state != StateClosed
		}
	}
}

// RecordFailure records a failed call. It returns true when this failure
// opened the breaker.
func (cb *CircuitBreaker) RecordFailure(upstream string) bool {
	b := cb.get(upstream)
	for {
		s := b.current.Load()
		var next *snapshot
		switch s.state {
		case StateClosed:
			failures := s.failures + 1
			if failures >= cb.cfg.FailureThreshold {
				next = cb.opened()
			} else {
				next = &snapshot{state: StateClosed, failures: failures}
			}
		case StateHalfOpen:
			next = cb.opened()
		default:
			return false
		}
		if b.current.CompareAndSwap(s, next) {
			return next.state == StateOpen
		}
	}
}

// ReleaseTrial returns a HalfOpen breaker to Open with an already expired
// window, so the next caller may try again. It is used when the trial call ended
// without a verdict, e.g. because its caller went away.
func (cb *CircuitBreaker) ReleaseTrial(upstream string) {
	b := cb.get(upstream)
	for {
		s := b.current.Load()
		if s.state != StateHalfOpen {
			return
		}
		next := &snapshot{state: StateOpen, failures: cb.cfg.FailureThreshold, openUntil: cb.cfg.Now()}
		if b.current.CompareAndSwap(s, next) {
			return
		}
	}
}

func (cb *CircuitBreaker) opened() *snapshot {
	return &snapshot{
		state:     StateOpen,
		failures:  cb.cfg.FailureThreshold,
		openUntil: cb.cfg.Now().Add(cb.cfg.ResetTimeout),
	}
}

// GetProviderStatus returns the state and consecutive failure count of
// upstream without transitioning it.
func (cb *CircuitBreaker) GetProviderStatus(upstream string) (State, int) {
	b, ok := cb.breakers.Load(upstream)
	if !ok {
		return StateClosed, 0
	}
	s := b.(*breaker).current.Load()
	return s.state, s.failures
}
