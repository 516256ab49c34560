// Package proxy forwards a request to a backend service and classifies the
// result.
//
// Every call ends in exactly one Outcome. A completed HTTP exchange is a
// Success whatever its status; only transport failures are failures:
//
//	out := fwd.Forward(ctx, svc, r, identity)
//	if out.Kind.IsFailure() {
//	    breaker.OnFailure()
//	}
package proxy
