package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/forgo/taskboard/internal/model"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

// ============================================================================
// In-memory RateLimiter Tests
// ============================================================================

func TestNewRateLimiter_Defaults(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	defer rl.Stop()

	if rl.rate != 100 || rl.window != time.Minute || rl.burst != 20 {
		t.Errorf("unexpected defaults: rate=%d window=%v burst=%d", rl.rate, rl.window, rl.burst)
	}
	if rl.Limit() != 100 {
		t.Errorf("expected Limit() 100, got %d", rl.Limit())
	}
}

func TestRateLimiter_ExhaustsRatePlusBurst(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 3, Window: time.Minute, Burst: 2})
	defer rl.Stop()

	now := time.Now()
	for i := 0; i < 5; i++ {
		d := rl.allowAt("192.0.2.1", now)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, 4-i, d.Remaining)
		}
	}

	d := rl.allowAt("192.0.2.1", now)
	if d.Allowed {
		t.Fatal("sixth request should be rejected")
	}
	// One token every 20s at 3 per minute
	if d.RetryAfter < 20*time.Second-time.Millisecond || d.RetryAfter > 20*time.Second+time.Millisecond {
		t.Errorf("expected retry after ~20s, got %v", d.RetryAfter)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 60, Window: time.Minute, Burst: 1})
	defer rl.Stop()

	now := time.Now()
	for i := 0; i < 61; i++ {
		rl.allowAt("k", now)
	}
	if rl.allowAt("k", now).Allowed {
		t.Fatal("bucket should be empty")
	}

	if !rl.allowAt("k", now.Add(2*time.Second)).Allowed {
		t.Error("tokens should have refilled after two seconds")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 1, Window: time.Hour, Burst: 1})
	defer rl.Stop()

	now := time.Now()
	rl.allowAt("a", now)
	rl.allowAt("a", now)
	if rl.allowAt("a", now).Allowed {
		t.Error("key a should be exhausted")
	}
	if !rl.allowAt("b", now).Allowed {
		t.Error("key b should have its own bucket")
	}
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 10, Window: time.Minute})
	defer rl.Stop()

	now := time.Now()
	rl.allowAt("old", now.Add(-3*time.Minute))
	rl.allowAt("fresh", now)

	rl.cleanupExpired(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["old"]; ok {
		t.Error("expected idle bucket to be removed")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Error("expected recent bucket to be kept")
	}
}

func TestRateLimiter_ConcurrentAllow(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 50, Window: time.Hour, Burst: 0})
	defer rl.Stop()
	// Burst 0 falls back to the default of 20
	const capacity = 70

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := rl.Allow(context.Background(), "shared")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != capacity {
		t.Errorf("expected %d allowed, got %d", capacity, allowed)
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	rl.Stop()
	rl.Stop()
}

// ============================================================================
// RedisRateLimiter Tests
// ============================================================================

func TestRedisRateLimiter_ExhaustsAndReportsWait(t *testing.T) {
	_, rdb := newMiniRedis(t)
	rl := NewRedisRateLimiter(rdb, RateLimitConfig{Rate: 2, Window: time.Minute, Burst: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "192.0.2.7")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := rl.Allow(ctx, "192.0.2.7")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth request should be rejected")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("expected a positive retry after, got %v", d.RetryAfter)
	}
}

func TestRedisRateLimiter_SharedAcrossInstances(t *testing.T) {
	_, rdb := newMiniRedis(t)
	cfg := RateLimitConfig{Rate: 1, Window: time.Hour, Burst: 1}
	first := NewRedisRateLimiter(rdb, cfg)
	second := NewRedisRateLimiter(rdb, cfg)
	ctx := context.Background()

	for _, rl := range []*RedisRateLimiter{first, second} {
		if d, err := rl.Allow(ctx, "k"); err != nil || !d.Allowed {
			t.Fatalf("expected allowed, got %+v err=%v", d, err)
		}
	}
	if d, err := first.Allow(ctx, "k"); err != nil || d.Allowed {
		t.Errorf("expected the shared bucket to be empty, got %+v err=%v", d, err)
	}
}

func TestRedisRateLimiter_KeyHasPrefixAndTTL(t *testing.T) {
	s, rdb := newMiniRedis(t)
	rl := NewRedisRateLimiter(rdb, RateLimitConfig{Rate: 10, Window: time.Second, Burst: 10})

	if _, err := rl.Allow(context.Background(), "198.51.100.4"); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	key := "taskboard:ratelimit:198.51.100.4"
	if !s.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if s.TTL(key) <= 0 {
		t.Errorf("expected a TTL on %q", key)
	}
}

// ============================================================================
// RateLimit Middleware Tests
// ============================================================================

type stubLimiter struct {
	decision Decision
	err      error
}

func (s stubLimiter) Allow(context.Context, string) (Decision, error) { return s.decision, s.err }
func (s stubLimiter) Limit() int                                      { return 10 }

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		limiter       Limiter
		wantStatus    int
		wantRemaining string
		wantRetry     string
	}{
		{
			name:          "allowed",
			limiter:       stubLimiter{decision: Decision{Allowed: true, Remaining: 7}},
			wantStatus:    http.StatusOK,
			wantRemaining: "7",
		},
		{
			name:          "rejected rounds retry up",
			limiter:       stubLimiter{decision: Decision{RetryAfter: 1500 * time.Millisecond}},
			wantStatus:    http.StatusTooManyRequests,
			wantRemaining: "0",
			wantRetry:     "2",
		},
		{
			name:       "limiter error fails open",
			limiter:    stubLimiter{err: context.DeadlineExceeded},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimit(tt.limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tasks", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("X-RateLimit-Remaining"); got != tt.wantRemaining {
				t.Errorf("expected remaining %q, got %q", tt.wantRemaining, got)
			}
			if got := rr.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("expected Retry-After %q, got %q", tt.wantRetry, got)
			}
			if tt.wantStatus == http.StatusTooManyRequests {
				var env model.Envelope
				if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
					t.Fatalf("decode envelope: %v", err)
				}
				if env.Message != "Too many requests" {
					t.Errorf("unexpected message %q", env.Message)
				}
			}
		})
	}
}

func TestRateLimitMiddleware_RedisUnavailable(t *testing.T) {
	s, rdb := newMiniRedis(t)
	rl := NewRedisRateLimiter(rdb, RateLimitConfig{Rate: 1, Window: time.Hour, Burst: 1})
	s.Close()

	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected request to pass through, got %d", rr.Code)
	}
}
