// This file implements the Redis-backed Store provider. It exists for
// deployments where a fleet of terminals shares one session backend, so a
// cashier can resume on any device behind the counter.
//
// All keys are prefixed with the "posterm:" namespace to avoid collisions
// with other tenants of the same Redis instance.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisNamespace = "posterm"

// RedisStore is a Redis-backed implementation of the Store interface
type RedisStore struct {
	client *redis.Client
	logger Logger
}

// NewRedisStore connects to Redis using a URL of the form
// redis://[user:pass@]host:port/db and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, logger: &NoOpLogger{}}, nil
}

// SetLogger configures the logger for this store
func (r *RedisStore) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", redisNamespace, key)
}

// Get retrieves a value; missing keys return ""
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value with an optional TTL (zero means no expiry)
func (r *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key; deleting a missing key is a no-op
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Exists reports whether the key is present
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// NewStore builds the Store selected by the token store configuration.
func NewStore(cfg TokenStoreConfig) (Store, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.FilePath), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("%w: unknown token store provider %q", ErrInvalidConfiguration, cfg.Provider)
	}
}
