package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Kind classifies a forward attempt.
type Kind int

// Outcome kinds.
const (
	Success Kind = iota
	Timeout
	ConnectFailure
	OtherFailure
	// InvalidRequest means the outbound request could not be built. The
	// backend was not contacted.
	InvalidRequest
)

// String returns the metric label of the kind.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case ConnectFailure:
		return "connect_failure"
	case OtherFailure:
		return "other_failure"
	case InvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the kind counts against the circuit breaker.
// Only failed exchanges with the backend do.
func (k Kind) IsFailure() bool {
	switch k {
	case Timeout, ConnectFailure, OtherFailure:
		return true
	default:
		return false
	}
}

// Response is a completed backend exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Outcome is the result of one forward attempt. Response is set only for
// Success and Err for every other kind.
type Outcome struct {
	Kind     Kind
	Response *Response
	Err      error
}

// classify maps a transport error to an outcome kind.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectFailure
	}

	return OtherFailure
}
