// Package store provides the request logs behind the sliding window rate
// limiter: a shared Redis store, an in-process memory store, and a resilient
// store that falls back from the first to the second while Redis is failing.
//
// A log is a set of unique members scored by their admission time in unix
// milliseconds, the shape of a Redis sorted set.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a per-key log of admitted requests.
type Store interface {
	// Prune removes entries scored at or before cutoff.
	Prune(ctx context.Context, key string, cutoff time.Time) error

	// Count returns the number of entries under key.
	Count(ctx context.Context, key string) (int64, error)

	// Add records member at the given time and sets the key to expire
	// after ttl.
	Add(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error

	// Close releases resources.
	Close() error
}

// Admitter performs a whole sliding window check as one atomic step: prune
// entries at or before now-window, and record member only when fewer than
// limit entries remain. It returns whether member was recorded and the entry
// count after the step.
type Admitter interface {
	Admit(ctx context.Context, key, member string, now time.Time, window time.Duration, limit int) (bool, int64, error)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
