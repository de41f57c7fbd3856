package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/taskboard/internal/metrics"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Rate    int           // Requests per window (default 100)
	Window  time.Duration // Time window (default 1 minute)
	Burst   int           // Extra tokens above Rate (default 20)
	Cleanup time.Duration // Cleanup interval for idle buckets (default 5 minutes)
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Rate == 0 {
		c.Rate = 100
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.Burst == 0 {
		c.Burst = 20
	}
	if c.Cleanup == 0 {
		c.Cleanup = 5 * time.Minute
	}
	return c
}

// RateLimiter is an in-process token bucket limiter. Buckets hold at most
// Rate+Burst tokens and refill at Rate tokens per Window.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	window   time.Duration
	burst    int
	cleanup  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates an in-memory rate limiter and starts its cleanup loop
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     cfg.Rate,
		window:   cfg.Window,
		burst:    cfg.Burst,
		cleanup:  cfg.Cleanup,
		stopChan: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// Limit returns the configured requests per window
func (rl *RateLimiter) Limit() int {
	return rl.rate
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired(time.Now())
		case <-rl.stopChan:
			return
		}
	}
}

// cleanupExpired drops buckets idle long enough to have refilled completely
func (rl *RateLimiter) cleanupExpired(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window * 2)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow takes one token from key's bucket if one is available
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	return rl.allowAt(key, time.Now()), nil
}

func (rl *RateLimiter) allowAt(key string, now time.Time) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	capacity := float64(rl.rate + rl.burst)
	perNano := float64(rl.rate) / float64(rl.window)

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: capacity, lastSeen: now}
		rl.buckets[key] = b
	} else if elapsed := now.Sub(b.lastSeen); elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+float64(elapsed)*perNano)
		b.lastSeen = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}
	}

	wait := time.Duration(math.Ceil((1 - b.tokens) / perNano))
	return Decision{Allowed: false, RetryAfter: wait}
}

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = capacity
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(capacity, tokens + (delta * rate) / 1000.0)

local allowed = tokens >= 1
local wait_ms = 0
if allowed then
  tokens = tokens - 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((capacity / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, math.floor(tokens)}
`

// RedisRateLimiter shares token buckets between replicas through Redis.
// Each check runs as a single Lua script so refill and take are atomic.
type RedisRateLimiter struct {
	rdb      redis.Scripter
	prefix   string
	rate     int
	perSec   float64
	capacity float64
	script   *redis.Script
}

// NewRedisRateLimiter creates a Redis-backed limiter with the same bucket
// shape as RateLimiter
func NewRedisRateLimiter(rdb redis.Scripter, cfg RateLimitConfig) *RedisRateLimiter {
	cfg = cfg.withDefaults()
	return &RedisRateLimiter{
		rdb:      rdb,
		prefix:   "taskboard:ratelimit:",
		rate:     cfg.Rate,
		perSec:   float64(cfg.Rate) / cfg.Window.Seconds(),
		capacity: float64(cfg.Rate + cfg.Burst),
		script:   redis.NewScript(tokenBucketLua),
	}
}

// Limit returns the configured requests per window
func (r *RedisRateLimiter) Limit() int {
	return r.rate
}

// Allow takes one token from key's shared bucket
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{r.prefix + key}, r.perSec, r.capacity, now).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 3 {
		return Decision{}, fmt.Errorf("ratelimit invalid result: %v", res)
	}

	return Decision{
		Allowed:    toInt64(values[0]) == 1,
		RetryAfter: time.Duration(toInt64(values[1])) * time.Millisecond,
		Remaining:  int(toInt64(values[2])),
	}, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// RateLimit rejects callers that exhaust their bucket with 429. A limiter
// error lets the request through.
func RateLimit(limiter Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), clientKey(r))
			if err != nil {
				slog.Warn("rate limiter unavailable",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				metrics.RateLimitRejectedTotal.Inc()
				writeEnvelope(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
