// Package redisclient wraps go-redis for the one narrow use Hotelly makes
// of a shared cache: the outbox-delivery lease fast path
// (internal/whatsapp). JWKS keys are not cached here. The SQL
// store remains the only authoritative serialization point (spec §5);
// Redis here is an optimization, never a source of truth.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/hotelly/hotelly/internal/config"
	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over *redis.Client.
type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

// Ping verifies connectivity with a short timeout.
func (r *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

// Get returns the cached value for key, or ("", false, nil) on miss.
func (r *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key with the given TTL.
func (r *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// SetNX attempts to acquire a short-lived lease, returning true if this
// caller won it. Used as a fast pre-check before the DB-row lease in
// internal/whatsapp so contended sends don't all race the database.
func (r *Client) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, "1", ttl).Result()
}

// Del removes a key, releasing a lease early.
func (r *Client) Del(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (r *Client) Close() error {
	return r.c.Close()
}
