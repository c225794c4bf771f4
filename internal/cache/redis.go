// Package cache wraps Redis as the application's key-value store with
// TTL-based expiry. It backs response caching and the gateway's breaker
// and token-bucket state.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
)

// TTLs per cached data class.
const (
	TTLPrice     = 5 * time.Minute
	TTLChart     = 5 * time.Minute
	TTLWalletRef = 12 * time.Hour
	TTLSynthetic = 30 * time.Minute
)

// RedisClient handles Redis caching operations
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get retrieves a value by key. A missing key returns an empty string.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	value, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

// Set stores a value with expiration
func (rc *RedisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// SetJSON stores a JSON-encoded value with expiration
func (rc *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return rc.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON retrieves and decodes a JSON value. The bool result reports
// whether the key existed.
func (rc *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Remember returns the cached value under key, computing and storing it
// via fn on a miss. The read-compute-write cycle is not atomic across
// processes; concurrent misses may compute twice with last-write-wins.
func (rc *RedisClient) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, fn func() (interface{}, error)) error {
	found, err := rc.GetJSON(ctx, key, dest)
	if err != nil {
		rc.logger.WithError(err).WithField("key", key).Warn("Cache read failed, recomputing")
	}
	if found {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	if err := rc.SetJSON(ctx, key, value, ttl); err != nil {
		rc.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}

	// Round-trip through JSON so dest sees the same shape as a cache hit.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal computed value: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes keys
func (rc *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}

// Publish publishes a JSON message to a Redis channel
func (rc *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return rc.client.Publish(ctx, channel, data).Err()
}
