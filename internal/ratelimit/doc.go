// Package ratelimit implements the client-keyed sliding window limiter.
//
// Each admitted request is logged under "<prefix><client>" with its
// admission time. A request is admitted when fewer than MaxRequests entries
// remain after dropping those older than the window. Rejected requests are
// not logged.
//
// By default the check is three separate store round trips (prune, count,
// add), so concurrent requests from one client across instances can slightly
// overshoot the limit. Exact mode runs the check as one atomic step on stores
// that support it.
package ratelimit
