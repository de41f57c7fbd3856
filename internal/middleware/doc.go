// Package middleware provides the HTTP middleware stack for the taskboard API.
//
// The server applies them outermost first:
//
//	RequestID -> Logger -> Recovery -> CORS -> Metrics -> RateLimit -> Compress -> Idempotency
//
// RateLimit and Idempotency each take a backend. The in-memory backends
// (RateLimiter, IdempotencyStore) are used by a single replica; the Redis
// backends (RedisRateLimiter, RedisIdempotencyStore) share state when
// REDIS_ADDR is set. Both fail open when Redis is unreachable.
//
// Every error body written here uses the same {message, data: null}
// envelope as the handlers.
package middleware
