package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

const keyPrefix = "ratelimit:"

// Limiter counts hits per key inside a fixed window.
type Limiter interface {
	// Allow records a hit for key and reports whether it is still within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type redisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

var _ Limiter = (*redisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, conf core.RateLimitConfig) Limiter {
	return &redisLimiter{client: client, requests: conf.Requests, window: conf.Window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = keyPrefix + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "ratelimit.Allow")
	}
	// a key without expiry was created by this hit
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, errors.Wrap(err, "ratelimit.Allow")
		}
	}
	return incr.Val() <= int64(l.requests), nil
}

type window struct {
	hits    int
	resetAt time.Time
}

type memoryLimiter struct {
	mu       sync.Mutex
	hits     map[string]*window
	requests int
	window   time.Duration
	now      func() time.Time
}

var _ Limiter = (*memoryLimiter)(nil)

// NewMemoryLimiter is used when no redis server is configured. Counts are per process.
func NewMemoryLimiter(conf core.RateLimitConfig) Limiter {
	return &memoryLimiter{
		hits:     make(map[string]*window),
		requests: conf.Requests,
		window:   conf.Window,
		now:      time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.hits[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.hits[key] = w
	}
	w.hits++
	return w.hits <= l.requests, nil
}

// NewLimiter connects to redis when an address is configured.
func NewLimiter(conf *core.Config) Limiter {
	if conf.Redis.Address == "" {
		return NewMemoryLimiter(conf.RateLimit)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return NewRedisLimiter(client, conf.RateLimit)
}
