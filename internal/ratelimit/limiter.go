package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/ratelimit/store"
)

// Config configures a Limiter.
type Config struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
	Exact       bool
}

// ConfigFrom converts the gateway rate limit configuration.
func ConfigFrom(rl config.RateLimitConfig) Config {
	return Config{
		Window:      rl.Window.Duration(),
		MaxRequests: rl.MaxRequests,
		KeyPrefix:   rl.KeyPrefix,
		Exact:       rl.Exact,
	}
}

// Result is the outcome of one check.
type Result struct {
	Allowed bool
	// Count is the number of logged requests in the window after the check.
	Count int64
	Limit int
	// RetryAfter is set on rejection.
	RetryAfter time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithMemberFunc replaces the generator of unique log members.
func WithMemberFunc(fn func() string) Option {
	return func(l *Limiter) {
		l.newMember = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter is a sliding window rate limiter over a Store.
type Limiter struct {
	store     store.Store
	cfg       Config
	now       func() time.Time
	newMember func() string
	logger    observability.Logger
}

// New creates a limiter.
func New(s store.Store, cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = config.DefaultRateLimitWindow
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = config.DefaultRateLimitMaxRequests
	}

	l := &Limiter{
		store:     s,
		cfg:       cfg,
		now:       time.Now,
		newMember: uuid.NewString,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the configured window.
func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

// Key returns the store key for client.
func (l *Limiter) Key(client string) string {
	return l.cfg.KeyPrefix + client
}

// Allow checks and records one request from client. A store error admits
// the request and is returned alongside the result.
func (l *Limiter) Allow(ctx context.Context, client string) (Result, error) {
	key := l.Key(client)
	now := l.now()

	if l.cfg.Exact {
		if a, ok := l.store.(store.Admitter); ok {
			return l.admitAtomic(ctx, a, key, now)
		}
	}

	return l.admitStepwise(ctx, key, now)
}

func (l *Limiter) admitAtomic(ctx context.Context, a store.Admitter, key string, now time.Time) (Result, error) {
	allowed, count, err := a.Admit(ctx, key, l.newMember(), now, l.cfg.Window, l.cfg.MaxRequests)
	if err != nil {
		return l.failOpen(fmt.Errorf("admit %s: %w", key, err))
	}
	return l.result(allowed, count), nil
}

func (l *Limiter) admitStepwise(ctx context.Context, key string, now time.Time) (Result, error) {
	if err := l.store.Prune(ctx, key, now.Add(-l.cfg.Window)); err != nil {
		return l.failOpen(fmt.Errorf("prune %s: %w", key, err))
	}

	count, err := l.store.Count(ctx, key)
	if err != nil {
		return l.failOpen(fmt.Errorf("count %s: %w", key, err))
	}

	if count >= int64(l.cfg.MaxRequests) {
		return l.result(false, count), nil
	}

	if err := l.store.Add(ctx, key, l.newMember(), now, l.cfg.Window); err != nil {
		return l.failOpen(fmt.Errorf("add %s: %w", key, err))
	}

	return l.result(true, count+1), nil
}

func (l *Limiter) result(allowed bool, count int64) Result {
	r := Result{Allowed: allowed, Count: count, Limit: l.cfg.MaxRequests}
	if !allowed {
		r.RetryAfter = l.cfg.Window
	}
	return r
}

func (l *Limiter) failOpen(err error) (Result, error) {
	return Result{Allowed: true, Limit: l.cfg.MaxRequests}, err
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
