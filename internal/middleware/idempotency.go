package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/taskboard/internal/metrics"
)

// maxIdempotentBodyBytes caps the body buffered for fingerprinting. It
// matches the handlers' decode limit.
const maxIdempotentBodyBytes = 1 << 20

// ErrIdempotencyInFlight is returned when another request holds the same key
var ErrIdempotencyInFlight = errors.New("idempotent request already in progress")

// CachedResponse is a response stored for replay
type CachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyBackend stores responses keyed by request fingerprint.
//
// Begin either returns a cached response, or claims the key (started=true)
// and obliges the caller to Complete or Abort it.
type IdempotencyBackend interface {
	Begin(ctx context.Context, key string) (cached *CachedResponse, started bool, err error)
	Complete(ctx context.Context, key string, resp CachedResponse) error
	Abort(ctx context.Context, key string) error
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep results (default 24h)
	Cleanup time.Duration // Cleanup interval for the memory store (default 1h)
}

func (c IdempotencyConfig) withDefaults() IdempotencyConfig {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.Cleanup == 0 {
		c.Cleanup = time.Hour
	}
	return c
}

// IdempotencyStore keeps idempotency results in process memory. Concurrent
// requests with the same key wait for the first to finish.
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

type idempotencyEntry struct {
	resp      CachedResponse
	expiresAt time.Time
	inFlight  bool
	done      chan struct{}
}

// NewIdempotencyStore creates a memory store and starts its cleanup loop
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	cfg = cfg.withDefaults()

	store := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		stopChan: make(chan struct{}),
	}

	go store.cleanupLoop(cfg.Cleanup)

	return store
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if !entry.inFlight && entry.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// Begin returns the stored response for key, waiting out an in-flight
// request with the same key, or claims the key for the caller.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (*CachedResponse, bool, error) {
	for {
		s.mu.Lock()
		entry, exists := s.entries[key]

		switch {
		case exists && entry.inFlight:
			done := entry.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		case exists && entry.expiresAt.After(time.Now()):
			resp := entry.resp
			s.mu.Unlock()
			return &resp, false, nil
		}

		s.entries[key] = &idempotencyEntry{inFlight: true, done: make(chan struct{})}
		s.mu.Unlock()
		return nil, true, nil
	}
}

// Complete stores resp for key and releases waiters
func (s *IdempotencyStore) Complete(_ context.Context, key string, resp CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	entry.resp = resp
	entry.expiresAt = time.Now().Add(s.ttl)
	entry.inFlight = false
	close(entry.done)
	return nil
}

// Abort forgets key so a later request runs again, and releases waiters
func (s *IdempotencyStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	delete(s.entries, key)
	if entry.inFlight {
		close(entry.done)
	}
	return nil
}

// RedisIdempotencyStore keeps idempotency results in Redis so replicas
// agree. A key claimed by a request still running elsewhere yields
// ErrIdempotencyInFlight instead of waiting.
type RedisIdempotencyStore struct {
	rdb     redis.Cmdable
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store
func NewRedisIdempotencyStore(rdb redis.Cmdable, cfg IdempotencyConfig) *RedisIdempotencyStore {
	cfg = cfg.withDefaults()
	return &RedisIdempotencyStore{
		rdb:     rdb,
		prefix:  "taskboard:idempotency:",
		ttl:     cfg.TTL,
		lockTTL: time.Minute,
	}
}

type redisIdempotencyRecord struct {
	Pending  bool            `json:"pending"`
	Response *CachedResponse `json:"response,omitempty"`
}

// Begin claims key with SETNX or returns what is already stored there
func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (*CachedResponse, bool, error) {
	pending, err := json.Marshal(redisIdempotencyRecord{Pending: true})
	if err != nil {
		return nil, false, err
	}

	ok, err := s.rdb.SetNX(ctx, s.prefix+key, pending, s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	var rec redisIdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	if rec.Pending || rec.Response == nil {
		return nil, false, ErrIdempotencyInFlight
	}
	return rec.Response, false, nil
}

// Complete overwrites the claim with the finished response
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, resp CachedResponse) error {
	raw, err := json.Marshal(redisIdempotencyRecord{Response: &resp})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}

// Abort releases the claim
func (s *RedisIdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

// fingerprint identifies a request by caller, key, route and body
func fingerprint(client, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{client, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyResponseWriter captures the response for caching
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a POST repeated with the same
// Idempotency-Key and body. Server errors are not stored, so a retry runs
// again. A backend failure lets the request through unprotected.
func Idempotency(backend IdempotencyBackend) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeEnvelope(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				writeEnvelope(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := fingerprint(clientKey(r), idempotencyKey, r.Method, r.URL.Path, body)

			cached, started, err := backend.Begin(ctx, key)
			switch {
			case errors.Is(err, ErrIdempotencyInFlight):
				writeEnvelope(w, http.StatusConflict, "Request already in progress")
				return
			case err != nil:
				slog.Warn("idempotency backend unavailable",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				metrics.IdempotentReplaysTotal.Inc()
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			case !started:
				next.ServeHTTP(w, r)
				return
			}

			irw := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					// Handler panicked or failed; release the claim
					_ = backend.Abort(context.WithoutCancel(ctx), key)
				}
			}()

			next.ServeHTTP(irw, r)

			if irw.status >= http.StatusInternalServerError {
				return
			}
			err = backend.Complete(context.WithoutCancel(ctx), key, CachedResponse{
				Status:      irw.status,
				ContentType: irw.Header().Get("Content-Type"),
				Body:        irw.body.Bytes(),
			})
			if err != nil {
				slog.Warn("idempotency store failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
				return
			}
			completed = true
		})
	}
}
