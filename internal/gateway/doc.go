// Package gateway serves the lending platform's single HTTP entry point.
//
// Requests under a configured route prefix are dispatched to a backend
// service in this order: route resolution, circuit breaker admission,
// authentication, forwarding, then outcome recording. The package also
// serves /health, /metrics and the circuit breaker admin endpoints.
//
// Errors are answered as JSON bodies of the form {"detail": "..."}.
package gateway
