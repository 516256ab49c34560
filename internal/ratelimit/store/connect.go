package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// ConnectOptions bounds WaitForRedis.
type ConnectOptions struct {
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultConnectOptions returns the startup retry policy.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Retries:        5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 2 * time.Second,
	}
}

// WaitForRedis pings the store until it answers, backing off with
// decorrelated jitter between attempts.
func WaitForRedis(ctx context.Context, s *RedisStore, opts ConnectOptions, logger observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}
	backoff := newDecorrelatedJitterBackoff(opts.InitialBackoff, opts.MaxBackoff)

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
		lastErr = s.Ping(pingCtx)
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("redis connection established after retry",
					observability.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		if attempt == opts.Retries {
			break
		}

		wait := backoff.next(attempt)
		logger.Debug("redis connection failed, retrying",
			observability.Int("attempt", attempt+1),
			observability.Int("max_retries", opts.Retries),
			observability.Duration("backoff", wait),
			observability.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis connection aborted: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed to connect to redis after %d attempts: %w", opts.Retries+1, lastErr)
}

// decorrelatedJitterBackoff computes sleep = min(cap, rand(base, prev*3)).
type decorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newDecorrelatedJitterBackoff(initial, maxDuration time.Duration) *decorrelatedJitterBackoff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if maxDuration < initial {
		maxDuration = initial
	}
	return &decorrelatedJitterBackoff{initial: initial, max: maxDuration, current: initial}
}

func (b *decorrelatedJitterBackoff) next(attempt int) time.Duration {
	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	lo := float64(b.initial)
	hi := float64(b.current) * 3
	//nolint:gosec // jitter does not need a secure source
	d := lo + rand.Float64()*(hi-lo)
	if d > float64(b.max) {
		d = float64(b.max)
	}

	b.current = time.Duration(d)
	return b.current
}
