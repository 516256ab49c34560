package circuitbreaker

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/loangw/internal/config"
)

// Transition describes a breaker changing state.
type Transition struct {
	Service string
	From    State
	To      State
	At      time.Time
}

// Observer receives transitions. Observers run while the breaker lock is
// held and must not call back into the breaker.
type Observer func(Transition)

// Status is a point-in-time view of a breaker.
type Status struct {
	State        State
	FailureCount int
	LastFailure  *time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now as the breaker's time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithObserver registers an observer for state transitions.
func WithObserver(o Observer) Option {
	return func(b *Breaker) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// Breaker is the circuit breaker of one backend service.
type Breaker struct {
	name      string
	threshold int
	recovery  time.Duration
	now       func() time.Time
	observers []Observer

	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  *time.Time
}

// New creates a closed breaker for service.
func New(service string, settings config.BreakerSettings, opts ...Option) *Breaker {
	if settings.FailureThreshold < 1 {
		settings.FailureThreshold = config.DefaultFailureThreshold
	}
	if settings.RecoveryTimeout <= 0 {
		settings.RecoveryTimeout = config.DefaultRecoveryTimeout
	}

	b := &Breaker{
		name:      service,
		threshold: settings.FailureThreshold,
		recovery:  settings.RecoveryTimeout,
		now:       time.Now,
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the service the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. An open breaker whose recovery
// timeout has strictly elapsed since the last failure moves to half-open and
// allows the call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.lastFailure != nil && b.now().Sub(*b.lastFailure) > b.recovery {
			b.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// OnSuccess records a completed backend exchange. Only a half-open breaker
// reacts: it closes and clears the failure count.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.failureCount = 0
		b.transitionTo(StateClosed)
	}
}

// OnFailure records a transport failure and opens the breaker once the
// failure count reaches the threshold.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	now := b.now()
	b.lastFailure = &now

	if b.failureCount >= b.threshold && b.state != StateOpen {
		b.transitionTo(StateOpen)
	}
}

// Reset forces the breaker closed and forgets all failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.lastFailure = nil
	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
}

// State returns the current state without evaluating the recovery timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the current status.
func (b *Breaker) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{State: b.state, FailureCount: b.failureCount}
	if b.lastFailure != nil {
		t := *b.lastFailure
		s.LastFailure = &t
	}
	return s
}

// transitionTo must be called with mu held.
func (b *Breaker) transitionTo(to State) {
	from := b.state
	b.state = to

	t := Transition{Service: b.name, From: from, To: to, At: b.now()}
	for _, o := range b.observers {
		o(t)
	}
}
