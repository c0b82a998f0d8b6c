// Package ratelimit throttles abusable endpoints such as login.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/nevc-media/vidstream/catalog/internal/metrics"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// slidingWindow admits a request when fewer than limit entries fall inside
// the window, and records it atomically.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return 1
	end
	return 0
`)

// RedisLimiter is a sliding-window limiter shared by every replica.
type RedisLimiter struct {
	client redis.UniversalClient
	name   string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, name string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		name:   name,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(math.Ceil(r.window.Seconds()))
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{"vidstream:ratelimit:" + r.name + ":" + key},
		now, windowStart, r.limit, ttl, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(r.name).Inc()
	}
	return allowed, nil
}

// LocalLimiter is an in-process token bucket per key, used when Redis is
// not configured. Each replica enforces its own budget.
type LocalLimiter struct {
	name  string
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows limit requests per window, refilled evenly.
func NewLocalLimiter(name string, limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		name:    name,
		limit:   rate.Every(window / time.Duration(max(limit, 1))),
		burst:   max(limit, 1),
		idle:    window,
		buckets: make(map[string]*bucket),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	if !b.lim.Allow() {
		metrics.RateLimitHits.WithLabelValues(l.name).Inc()
		return false, nil
	}
	return true, nil
}

// Sweep forgets buckets idle for longer than the window, which are full
// again anyway.
func (l *LocalLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (l *LocalLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// NoOpLimiter always allows requests.
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}
