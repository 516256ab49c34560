package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/loangw/internal/observability"
)

// admitScript performs one atomic sliding window check.
// KEYS[1] = key
// ARGV[1] = limit
// ARGV[2] = window in ms
// ARGV[3] = now in ms
// ARGV[4] = member
// Returns: {allowed (0 or 1), count}
var admitScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	if count >= limit then
		return {0, count}
	end

	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window_ms)
	return {1, count + 1}
`)

// RedisOptions configures the client behind a RedisStore.
type RedisOptions struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient builds a client from a redis:// URL. Explicit options
// override values from the URL.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	o, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		o.PoolSize = opts.PoolSize
	}
	if opts.DialTimeout > 0 {
		o.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		o.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		o.WriteTimeout = opts.WriteTimeout
	}
	return redis.NewClient(o), nil
}

// RedisStore implements Store and Admitter on Redis sorted sets shared by
// every gateway instance.
type RedisStore struct {
	client  redis.UniversalClient
	logger  observability.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	closed bool
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithRedisMetrics records per-operation metrics.
func WithRedisMetrics(m *observability.Metrics) RedisStoreOption {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// NewRedisStore wraps client. The store owns the client and closes it.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordStoreOperation(op, status, time.Since(start))
}

// Prune implements Store.
func (s *RedisStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis prune: %w", err)
	}

	start := time.Now()
	err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(millis(cutoff), 10)).Err()
	s.record("prune", start, err)
	if err != nil {
		return fmt.Errorf("redis prune error: %w", err)
	}
	return nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis count: %w", err)
	}

	start := time.Now()
	n, err := s.client.ZCard(ctx, key).Result()
	s.record("count", start, err)
	if err != nil {
		return 0, fmt.Errorf("redis count error: %w", err)
	}
	return n, nil
}

// Add implements Store. The insert and the expiry are sent in one pipeline.
func (s *RedisStore) Add(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis add: %w", err)
	}

	start := time.Now()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(millis(at)), Member: member})
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	s.record("add", start, err)
	if err != nil {
		return fmt.Errorf("redis add error: %w", err)
	}
	return nil
}

// Admit implements Admitter with a Lua script.
func (s *RedisStore) Admit(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int,
) (bool, int64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, fmt.Errorf("context error before redis admit: %w", err)
	}

	start := time.Now()
	res, err := admitScript.Run(ctx, s.client,
		[]string{key},
		limit,
		window.Milliseconds(),
		millis(now),
		member,
	).Int64Slice()
	s.record("admit", start, err)
	if err != nil {
		return false, 0, fmt.Errorf("admit script error: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("admit script returned %d values", len(res))
	}

	return res[0] == 1, res[1], nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
