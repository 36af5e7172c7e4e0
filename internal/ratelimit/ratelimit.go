// Package ratelimit implements a fixed-window request limiter backed by
// Redis, shared by every API replica.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/contactsbook/apiserver/internal/metrics"
)

const keyPrefix = "ratelimit:"

// Result describes the state of a window after a hit.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows at most limit hits per key in each window.
type Limiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(client *redis.Client, limit int, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, limit: limit, window: window, logger: logger, metrics: m}
}

// Allow records a hit for key. The window starts at the first hit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := keyPrefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, err
		}
	}

	if count <= int64(l.limit) {
		return Result{Allowed: true, Remaining: l.limit - int(count)}, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if ttl < 0 {
		// The expiry was lost; re-arm it so the key cannot block forever.
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return Result{Allowed: false, RetryAfter: ttl}, nil
}

// Middleware rejects requests over the limit with 429. keyFunc names the
// bucket for a request; an empty key bypasses the limiter. Redis failures
// let the request through.
func (l *Limiter) Middleware(scope string, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), scope+":"+key)
			if err != nil {
				l.logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			if !res.Allowed {
				l.metrics.RateLimited()
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Too Many Requests"})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
