package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// Fallback reasons reported in ratelimit_store_fallback_total.
const (
	FallbackReasonStoreError  = "store_error"
	FallbackReasonBreakerOpen = "breaker_open"
)

// ResilientConfig configures the breaker in front of the primary store.
type ResilientConfig struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

type primaryStore interface {
	Store
	Admitter
}

// ResilientStore sends operations to a primary store through a gobreaker
// circuit breaker. When the primary fails, or while the breaker is open, the
// operation is answered by a local memory store so admission keeps working on
// this instance.
type ResilientStore struct {
	primary  primaryStore
	fallback *MemoryStore
	cb       *gobreaker.CircuitBreaker
	logger   observability.Logger
	metrics  *observability.Metrics
}

// ResilientOption configures a ResilientStore.
type ResilientOption func(*ResilientStore)

// WithResilientLogger sets the logger.
func WithResilientLogger(logger observability.Logger) ResilientOption {
	return func(s *ResilientStore) {
		s.logger = logger
	}
}

// WithResilientMetrics counts fallbacks.
func WithResilientMetrics(m *observability.Metrics) ResilientOption {
	return func(s *ResilientStore) {
		s.metrics = m
	}
}

// NewResilientStore wraps primary. fallback may be nil, in which case a
// memory store is created and owned by the resilient store.
func NewResilientStore(
	primary primaryStore,
	fallback *MemoryStore,
	cfg ResilientConfig,
	opts ...ResilientOption,
) *ResilientStore {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}

	s := &ResilientStore{
		primary:  primary,
		fallback: fallback,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fields := []observability.Field{
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			}
			if to == gobreaker.StateOpen {
				s.logger.Warn("rate limit store degraded, using local fallback", fields...)
				return
			}
			s.logger.Info("rate limit store breaker state change", fields...)
		},
	})

	return s
}

// State returns the breaker state.
func (s *ResilientStore) State() gobreaker.State {
	return s.cb.State()
}

// degrade records a fallback and reports whether the caller should use the
// fallback store. Context cancellation is returned to the caller as is.
func (s *ResilientStore) degrade(ctx context.Context, op string, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	reason := FallbackReasonStoreError
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		reason = FallbackReasonBreakerOpen
	} else {
		s.logger.Warn("rate limit store operation failed",
			observability.String("operation", op),
			observability.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordStoreFallback(reason)
	}
	return true
}

// Prune implements Store.
func (s *ResilientStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Prune(ctx, key, cutoff)
	})
	if err != nil && s.degrade(ctx, "prune", err) {
		return s.fallback.Prune(ctx, key, cutoff)
	}
	return err
}

// Count implements Store.
func (s *ResilientStore) Count(ctx context.Context, key string) (int64, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		return s.primary.Count(ctx, key)
	})
	if err != nil {
		if s.degrade(ctx, "count", err) {
			return s.fallback.Count(ctx, key)
		}
		return 0, err
	}
	return v.(int64), nil
}

// Add implements Store.
func (s *ResilientStore) Add(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Add(ctx, key, member, at, ttl)
	})
	if err != nil && s.degrade(ctx, "add", err) {
		return s.fallback.Add(ctx, key, member, at, ttl)
	}
	return err
}

type admitResult struct {
	allowed bool
	count   int64
}

// Admit implements Admitter.
func (s *ResilientStore) Admit(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int,
) (bool, int64, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		allowed, count, err := s.primary.Admit(ctx, key, member, now, window, limit)
		return admitResult{allowed: allowed, count: count}, err
	})
	if err != nil {
		if s.degrade(ctx, "admit", err) {
			return s.fallback.Admit(ctx, key, member, now, window, limit)
		}
		return false, 0, err
	}
	r := v.(admitResult)
	return r.allowed, r.count, nil
}

// Close closes both stores.
func (s *ResilientStore) Close() error {
	return errors.Join(s.primary.Close(), s.fallback.Close())
}
