// Package health aggregates the health of the backend services.
//
// Every service is probed concurrently at GET {base}{path}. A 200 answer is
// healthy; any other answer is unhealthy but still carries a response
// time; a transport error is unhealthy without one. The report is healthy
// only when every service is, and degraded otherwise.
package health
