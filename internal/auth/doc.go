// Package auth decides whether a request may reach a backend service.
//
// A Delegate resolves the caller identity from an optional bearer token.
// Absent or invalid tokens mean an anonymous caller; anonymous callers may
// only reach the services configured as public.
package auth
