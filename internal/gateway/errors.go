package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/loangw/internal/auth"
	"github.com/vyrodovalexey/loangw/internal/circuitbreaker"
	"github.com/vyrodovalexey/loangw/internal/proxy"
	"github.com/vyrodovalexey/loangw/internal/router"
)

// Error is a client-visible failure with a fixed status and detail.
type Error struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Detail
}

// Gateway errors answered to clients.
var (
	ErrRateLimited         = &Error{Status: http.StatusTooManyRequests, Detail: "too many requests, please retry later"}
	ErrBreakerOpen         = &Error{Status: http.StatusServiceUnavailable, Detail: "service temporarily unavailable, please retry later"}
	ErrUpstreamTimeout     = &Error{Status: http.StatusGatewayTimeout, Detail: "service timeout"}
	ErrUpstreamUnreachable = &Error{Status: http.StatusServiceUnavailable, Detail: "service unavailable"}
	ErrUpstreamOther       = &Error{Status: http.StatusInternalServerError, Detail: "request forwarding failed"}
	ErrInvalidRequest      = &Error{Status: http.StatusBadRequest, Detail: "invalid request"}
	ErrMethodNotAllowed    = &Error{Status: http.StatusMethodNotAllowed, Detail: "method not allowed"}
	ErrInternal            = &Error{Status: http.StatusInternalServerError, Detail: "internal server error"}
)

// Errors raised by other packages.
var (
	ErrRouteNotFound  = router.ErrRouteNotFound
	ErrUnknownService = circuitbreaker.ErrUnknownService
	ErrAuthRequired   = auth.ErrAuthRequired
)

var foreignErrors = []struct {
	err    error
	status int
	detail string
}{
	{err: ErrRouteNotFound, status: http.StatusNotFound, detail: "service not found"},
	{err: ErrUnknownService, status: http.StatusNotFound, detail: "service not found"},
	{err: ErrAuthRequired, status: http.StatusUnauthorized, detail: "authentication required"},
}

// StatusFor maps an error to its HTTP status and detail message. Unknown
// errors map to 500.
func StatusFor(err error) (int, string) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status, gwErr.Detail
	}
	for _, f := range foreignErrors {
		if errors.Is(err, f.err) {
			return f.status, f.detail
		}
	}
	return ErrInternal.Status, ErrInternal.Detail
}

// errorForOutcome returns the error answered for a failed forward.
func errorForOutcome(k proxy.Kind) error {
	switch k {
	case proxy.Timeout:
		return ErrUpstreamTimeout
	case proxy.ConnectFailure:
		return ErrUpstreamUnreachable
	case proxy.InvalidRequest:
		return ErrInvalidRequest
	default:
		return ErrUpstreamOther
	}
}

// abortWithError answers err as a detail body and stops the chain.
func abortWithError(c *gin.Context, err error) {
	status, detail := StatusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
