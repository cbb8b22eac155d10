package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/electvote/electvote/internal/auth"
	"github.com/electvote/electvote/internal/clock"
)

// Limiter decides whether another request under key fits the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. Each
// bucket holds limit tokens and refills at limit per period.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	every  rate.Limit
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryLimiter allows limit requests per key in each period
func NewMemoryLimiter(limit int, period time.Duration, clk clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		every:   rate.Every(period / time.Duration(limit)),
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.prune(now)
		b = &bucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// prune drops buckets idle for a whole period, which are full again;
// callers hold mu
func (l *MemoryLimiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.period {
			delete(l.buckets, key)
		}
	}
}

// Len reports how many keys are tracked
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RedisLimiter is a fixed-window counter shared by every instance through Redis
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

// NewRedisLimiter allows limit requests per key in each period
func NewRedisLimiter(client redis.UniversalClient, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "electvote:ratelimit:",
		limit:  limit,
		period: period,
	}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.period).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.limit), nil
}

// rateLimit throttles authenticated actors. A limiter failure lets the
// request through.
func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := r.RemoteAddr
		if actor, ok := auth.ActorFrom(r.Context()); ok {
			key = "user:" + strconv.FormatInt(actor.ID, 10)
		}

		allowed, err := h.Limiter.Allow(r.Context(), key)
		if err != nil {
			h.Log.Warn("Rate limiter unavailable", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			h.Log.Debug("Rate limited", "key", key, "path", r.URL.Path)
			respondError(w, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
