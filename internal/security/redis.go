// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package security

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the counter and starts its expiry on the first hit,
// in one server-side step.
var hitScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

// RedisBackend keeps counters in Redis so several processes share ceilings.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string
	// Prefix is prepended to all keys (e.g., "eventboard:rl:")
	Prefix string
	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = "eventboard:rl:"
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisBackend{client: client, prefix: opts.Prefix}, nil
}

// Hit implements Backend. The counter keeps growing past limit while the
// window is open; only its comparison with limit matters.
func (b *RedisBackend) Hit(ctx context.Context, key string, limit int, d time.Duration) (bool, error) {
	count, err := hitScript.Run(ctx, b.client, []string{b.prefix + key}, d.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// Reset implements Backend.
func (b *RedisBackend) Reset(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}

// Sweep implements Backend. Redis expires keys on its own.
func (b *RedisBackend) Sweep(context.Context) (int, error) {
	return 0, nil
}

// Close closes the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
