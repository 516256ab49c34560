package store

import (
	"context"
	"sync"
	"time"
)

const defaultCleanupInterval = time.Minute

type logEntry struct {
	member string
	score  int64
}

type requestLog struct {
	mu         sync.Mutex
	entries    []logEntry
	expiration time.Time
}

// expired must be called with mu held.
func (l *requestLog) expired(now time.Time) bool {
	return !l.expiration.IsZero() && !now.Before(l.expiration)
}

// prune must be called with mu held.
func (l *requestLog) prune(cutoff int64) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.score > cutoff {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// add must be called with mu held. Re-adding a member updates its score.
func (l *requestLog) add(member string, score int64) {
	for i := range l.entries {
		if l.entries[i].member == member {
			l.entries[i].score = score
			return
		}
	}
	l.entries = append(l.entries, logEntry{member: member, score: score})
}

// MemoryStore implements Store and Admitter in process memory. Keys expire
// like their Redis counterparts and are swept periodically.
type MemoryStore struct {
	data    sync.Map
	now     func() time.Time
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryStore creates a memory store swept once a minute.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(defaultCleanupInterval)
}

// NewMemoryStoreWithCleanupInterval creates a memory store with a custom
// sweep interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	s := &MemoryStore{
		now:     time.Now,
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

// WithClock replaces the clock used for key expiry. It is meant for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// log returns the live log for key, creating it when create is set.
// The returned log is locked.
func (s *MemoryStore) log(key string, create bool) *requestLog {
	now := s.now()
	for {
		v, ok := s.data.Load(key)
		if !ok {
			if !create {
				return nil
			}
			v, _ = s.data.LoadOrStore(key, &requestLog{})
		}

		l := v.(*requestLog)
		l.mu.Lock()
		if l.expired(now) {
			s.data.CompareAndDelete(key, l)
			l.mu.Unlock()
			continue
		}
		return l
	}
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	l := s.log(key, false)
	if l == nil {
		return nil
	}
	defer l.mu.Unlock()

	l.prune(millis(cutoff))
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, key string) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	l := s.log(key, false)
	if l == nil {
		return 0, nil
	}
	defer l.mu.Unlock()

	return int64(len(l.entries)), nil
}

// Add implements Store.
func (s *MemoryStore) Add(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	l := s.log(key, true)
	defer l.mu.Unlock()

	l.add(member, millis(at))
	l.expiration = s.now().Add(ttl)
	return nil
}

// Admit implements Admitter under the key's lock.
func (s *MemoryStore) Admit(
	ctx context.Context,
	key, member string,
	now time.Time,
	window time.Duration,
	limit int,
) (bool, int64, error) {
	if err := s.check(ctx); err != nil {
		return false, 0, err
	}

	l := s.log(key, true)
	defer l.mu.Unlock()

	l.prune(millis(now.Add(-window)))
	count := int64(len(l.entries))
	if count >= int64(limit) {
		return false, count, nil
	}

	l.add(member, millis(now))
	l.expiration = s.now().Add(window)
	return true, count + 1, nil
}

// Len returns the number of live keys.
func (s *MemoryStore) Len() int {
	now := s.now()
	n := 0
	s.data.Range(func(_, v any) bool {
		l := v.(*requestLog)
		l.mu.Lock()
		if !l.expired(now) {
			n++
		}
		l.mu.Unlock()
		return true
	})
	return n
}

func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.done:
			return
		case <-s.cleanup.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.data.Range(func(key, v any) bool {
		l := v.(*requestLog)
		l.mu.Lock()
		if l.expired(now) {
			s.data.CompareAndDelete(key, l)
		}
		l.mu.Unlock()
		return true
	})
}

// Close stops the sweeper.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	close(s.done)
	return nil
}
