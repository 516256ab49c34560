package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/loangw/internal/auth"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/proxy"
)

// allowedMethods are the methods dispatched to backend services.
var allowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodOptions,
}

func methodAllowed(m string) bool {
	for _, a := range allowedMethods {
		if a == m {
			return true
		}
	}
	return false
}

// handleProxy dispatches a request to its backend service. A rejected
// request never reaches the backend and records no breaker outcome.
func (g *Gateway) handleProxy(c *gin.Context) {
	r := c.Request

	entry, ok := g.routes.Match(r.URL.Path)
	if !ok {
		abortWithError(c, ErrRouteNotFound)
		return
	}
	if !methodAllowed(r.Method) {
		abortWithError(c, ErrMethodNotAllowed)
		return
	}

	svc := g.services[entry.Service]
	breaker, err := g.breakers.Get(entry.Service)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if !breaker.Allow() {
		g.logger.WithContext(r.Context()).Warn("circuit breaker rejected request",
			observability.String("service", svc.Name),
			observability.String("path", r.URL.Path),
		)
		abortWithError(c, ErrBreakerOpen)
		return
	}

	identity, err := g.auth.Authorize(r, svc.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if identity != nil {
		c.Request = r.WithContext(auth.ContextWithIdentity(r.Context(), identity))
	}

	out := g.forwarder.Forward(r.Context(), svc, r, identity)
	switch {
	case out.Kind == proxy.InvalidRequest:
		_ = c.Error(out.Err)
		abortWithError(c, errorForOutcome(out.Kind))
		return
	case out.Kind.IsFailure():
		breaker.OnFailure()
		_ = c.Error(out.Err)
		abortWithError(c, errorForOutcome(out.Kind))
		return
	}

	breaker.OnSuccess()
	proxy.WriteResponse(c.Writer, out.Response)
}
