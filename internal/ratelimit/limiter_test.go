package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/ratelimit/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
}

func sequentialMembers() func() string {
	var n atomic.Int64
	return func() string {
		return "m" + strconv.FormatInt(n.Add(1), 10)
	}
}

type storeFactory func(t *testing.T, clock *testClock) store.Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock *testClock) store.Store {
			s := store.NewMemoryStore().WithClock(clock.Now)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"redis": func(t *testing.T, _ *testClock) store.Store {
			mr := miniredis.RunT(t)
			client, err := store.NewRedisClient(store.RedisOptions{URL: "redis://" + mr.Addr()})
			require.NoError(t, err)
			s := store.NewRedisStore(client)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestLimiter_WindowBoundary(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		for _, exact := range []bool{false, true} {
			t.Run(name+"/exact="+strconv.FormatBool(exact), func(t *testing.T) {
				t.Parallel()

				clock := newClock()
				l := New(factory(t, clock),
					Config{Window: 60 * time.Second, MaxRequests: 100, KeyPrefix: "rate_limit:", Exact: exact},
					WithClock(clock.Now),
					WithMemberFunc(sequentialMembers()),
				)
				ctx := context.Background()

				for i := 0; i < 100; i++ {
					res, err := l.Allow(ctx, "10.0.0.1")
					require.NoError(t, err)
					require.True(t, res.Allowed, "request %d", i+1)
					assert.Equal(t, int64(i+1), res.Count)
				}

				res, err := l.Allow(ctx, "10.0.0.1")
				require.NoError(t, err)
				assert.False(t, res.Allowed)
				assert.Equal(t, int64(100), res.Count)
				assert.Equal(t, 60*time.Second, res.RetryAfter)
				assert.Equal(t, 100, res.Limit)

				other, err := l.Allow(ctx, "10.0.0.2")
				require.NoError(t, err)
				assert.True(t, other.Allowed, "limits are per client")

				clock.Advance(59 * time.Second)
				res, err = l.Allow(ctx, "10.0.0.1")
				require.NoError(t, err)
				assert.False(t, res.Allowed)

				clock.Advance(time.Second)
				res, err = l.Allow(ctx, "10.0.0.1")
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.Equal(t, int64(1), res.Count)
			})
		}
	}
}

func TestLimiter_RejectionsAreNotRecorded(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := store.NewMemoryStore().WithClock(clock.Now)
	defer s.Close()

	l := New(s, Config{Window: 10 * time.Second, MaxRequests: 2, KeyPrefix: "rate_limit:"}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "c")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		res, err := l.Allow(ctx, "c")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	}

	n, err := s.Count(ctx, "rate_limit:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	clock.Advance(5 * time.Second)
	res, err := l.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiter_KeyFormat(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := store.NewRedisClient(store.RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	s := store.NewRedisStore(client)
	defer s.Close()

	l := New(s, ConfigFrom(config.DefaultConfig().RateLimit))
	_, err = l.Allow(context.Background(), "192.0.2.7")
	require.NoError(t, err)

	assert.True(t, mr.Exists("rate_limit:192.0.2.7"))
	assert.Equal(t, 60*time.Second, mr.TTL("rate_limit:192.0.2.7"))
	assert.Equal(t, "rate_limit:x", l.Key("x"))
	assert.Equal(t, 60*time.Second, l.Window())
}

type failingStore struct {
	store.Store
}

func (failingStore) Prune(context.Context, string, time.Time) error {
	return errors.New("connection refused")
}

func TestLimiter_StoreErrorFailsOpen(t *testing.T) {
	t.Parallel()

	l := New(failingStore{}, Config{Window: time.Minute, MaxRequests: 1})

	res, err := l.Allow(context.Background(), "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune")
	assert.True(t, res.Allowed)
}

func TestLimiter_ExactWithoutAdmitterUsesSteps(t *testing.T) {
	t.Parallel()

	clock := newClock()
	mem := store.NewMemoryStore().WithClock(clock.Now)
	defer mem.Close()

	// Embedding hides Admit.
	s := struct{ store.Store }{mem}
	l := New(s, Config{Window: time.Minute, MaxRequests: 1, Exact: true}, WithClock(clock.Now))

	res, err := l.Allow(context.Background(), "c")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(context.Background(), "c")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	l := New(store.NewMemoryStore(), Config{})
	defer l.Close()

	assert.Equal(t, config.DefaultRateLimitWindow, l.cfg.Window)
	assert.Equal(t, config.DefaultRateLimitMaxRequests, l.cfg.MaxRequests)
}
