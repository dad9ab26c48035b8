// Package cache provides a tiny Redis client wrapper for classifier score caching
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every score key in Redis.
const KeyPrefix = "ripeness:score:"

// Cache wraps a Redis client for score storage
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Cache instance connected to the specified Redis address.
// Scores expire after ttl; a zero ttl keeps them forever.
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password by default
		DB:       0,  // Default DB
	})

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key returns the Redis key a score is stored under
func Key(scoreKey string) string {
	return KeyPrefix + scoreKey
}

// SetScore stores a classifier score under key
func (c *Cache) SetScore(ctx context.Context, key string, score float32) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache client is nil")
	}

	value := strconv.FormatFloat(float64(score), 'g', -1, 32)
	if err := c.client.Set(ctx, Key(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set score %s: %w", key, err)
	}

	return nil
}

// GetScore retrieves a classifier score; ok is false when the key does not exist
func (c *Cache) GetScore(ctx context.Context, key string) (float32, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, fmt.Errorf("cache client is nil")
	}

	data, err := c.client.Get(ctx, Key(key)).Result()
	if err == redis.Nil {
		return 0, false, nil // Key does not exist
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get score %s: %w", key, err)
	}

	score, err := strconv.ParseFloat(data, 32)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt score %s: %w", key, err)
	}

	return float32(score), true, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}
