package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSweepInterval = 5 * time.Minute

// RateLimitResult describes the fixed window a hit landed in.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfterSeconds rounds the time left in the window up to whole seconds.
func (r RateLimitResult) RetryAfterSeconds(now time.Time) int {
	left := r.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

type RateLimitStore interface {
	Hit(ctx context.Context, key string) (RateLimitResult, error)
}

type MemoryRateLimitOptions struct {
	Limit         int
	Window        time.Duration
	SweepInterval time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimitStore is a per-process fixed window counter. Counters are not shared
// between instances; use RedisRateLimitStore for that.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	limit   int
	window  time.Duration
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func NewMemoryRateLimitStore(opts MemoryRateLimitOptions) *MemoryRateLimitStore {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	s := &MemoryRateLimitStore{
		entries: make(map[string]*rateLimitEntry),
		limit:   opts.Limit,
		window:  opts.Window,
		now:     opts.Now,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(opts.SweepInterval)
	return s
}

func (s *MemoryRateLimitStore) Hit(_ context.Context, key string) (RateLimitResult, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &rateLimitEntry{resetAt: now.Add(s.window)}
		s.entries[key] = entry
	}
	entry.count++
	return newRateLimitResult(entry.count, s.limit, entry.resetAt), nil
}

// Sweep drops windows that have already ended.
func (s *MemoryRateLimitStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if !now.Before(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryRateLimitStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *MemoryRateLimitStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// RedisRateLimitStore shares counters between instances with INCR and PEXPIRE.
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisRateLimitStore(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimitStore {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimitStore{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (s *RedisRateLimitStore) Hit(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := s.prefix + key

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit hit for %s: %w", key, err)
	}

	ttl := pttl.Val()
	// a fresh key, or one left without expiry, starts a new window
	if ttl < 0 {
		if err := s.client.PExpire(ctx, redisKey, s.window).Err(); err != nil {
			return RateLimitResult{}, fmt.Errorf("rate limit expire for %s: %w", key, err)
		}
		ttl = s.window
	}
	return newRateLimitResult(int(incr.Val()), s.limit, s.now().Add(ttl)), nil
}

// NewRedisClient parses a redis:// or rediss:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func newRateLimitResult(count, limit int, resetAt time.Time) RateLimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
