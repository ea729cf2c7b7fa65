package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefix for cached responses
const cacheKeyPrefix = "response:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

// GetResponse retrieves a cached response by key
func (c *RedisCache) GetResponse(ctx context.Context, key string) (string, error) {
	text, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil // Cache miss
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// SetResponse stores a response with TTL
func (c *RedisCache) SetResponse(ctx context.Context, key string, text string, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKeyPrefix+key, text, ttl).Err()
}

// Close closes the cache connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
