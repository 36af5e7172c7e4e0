// Package cache implements the read-through identity cache consulted on
// every authenticated request.
//
// The cache is an optimization only. Any store failure, timeout, or corrupt
// entry is reported as a miss so the caller falls back to the database, and
// writes are best-effort. Only avatar changes invalidate an entry; any other
// staleness is bounded by the TTL.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/contactsbook/apiserver/internal/metrics"
	"github.com/contactsbook/apiserver/types"
)

const (
	DefaultTTL     = 900 * time.Second
	DefaultTimeout = 150 * time.Millisecond
)

// UserKey derives the cache key for a user email.
func UserKey(email string) string {
	return "user:" + email
}

// IdentityCache maps user emails to user snapshots with a fixed TTL.
type IdentityCache struct {
	store   Store
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*IdentityCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *IdentityCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTimeout bounds each store round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(c *IdentityCache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *IdentityCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *IdentityCache) {
		c.metrics = m
	}
}

// NewIdentityCache wraps store. A nil store yields a cache that always misses.
func NewIdentityCache(store Store, opts ...Option) *IdentityCache {
	c := &IdentityCache{
		store:   store,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached user for email. ok is false on miss, expiry, or
// any store failure.
func (c *IdentityCache) Get(ctx context.Context, email string) (user types.User, ok bool) {
	if c.store == nil {
		c.metrics.CacheLookup(metrics.ResultMiss)
		return types.User{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := UserKey(email)
	data, err := c.store.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			c.metrics.CacheLookup(metrics.ResultMiss)
			return types.User{}, false
		}
		c.metrics.CacheLookup(metrics.ResultError)
		c.logger.WarnContext(ctx, "identity cache read failed", "key", key, "error", err)
		return types.User{}, false
	}

	user, err = Deserialize(data)
	if err != nil {
		c.metrics.CacheLookup(metrics.ResultError)
		c.logger.WarnContext(ctx, "identity cache entry unreadable", "key", key, "error", err)
		return types.User{}, false
	}

	c.metrics.CacheLookup(metrics.ResultHit)
	return user, true
}

// Set stores a snapshot of user under its email, re-arming the TTL.
// Failures are logged and otherwise ignored.
func (c *IdentityCache) Set(ctx context.Context, user types.User) {
	if c.store == nil {
		return
	}

	key := UserKey(user.Email)
	data, err := Serialize(user)
	if err != nil {
		c.metrics.CacheWrite(metrics.ResultError)
		c.logger.WarnContext(ctx, "identity cache encode failed", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.metrics.CacheWrite(metrics.ResultError)
		c.logger.WarnContext(ctx, "identity cache write failed", "key", key, "error", err)
		return
	}
	c.metrics.CacheWrite(metrics.ResultOK)
}

// Invalidate drops the entry for email so the next lookup reads the
// database. Failures are logged; the entry then lives out its TTL.
func (c *IdentityCache) Invalidate(ctx context.Context, email string) {
	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := UserKey(email)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "identity cache invalidation failed", "key", key, "error", err)
	}
}

// Close releases the underlying store.
func (c *IdentityCache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
