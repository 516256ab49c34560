// Package circuitbreaker implements the per-service circuit breakers that
// gate forwarding to backends.
//
// A breaker counts transport failures. Once the count reaches the failure
// threshold it opens and rejects calls until the recovery timeout has elapsed
// since the last failure, then lets calls through in the half-open state. The
// first success in half-open closes it again.
//
// Two behaviours are kept deliberately: successes while closed do not reset
// the failure count, and half-open admits any number of concurrent trial
// calls.
package circuitbreaker

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed allows calls.
	StateClosed State = iota

	// StateOpen rejects calls until the recovery timeout has elapsed.
	StateOpen

	// StateHalfOpen allows trial calls.
	StateHalfOpen
)

// String returns the name used in status responses and metric labels.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// GaugeValue is the value exported by the circuit_breaker_state gauge.
func (s State) GaugeValue() int {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}
