package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when CACHE_PROVIDER=none or Redis is unavailable - all operations
// succeed but every lookup is a miss.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetResponse always returns "" (cache miss)
func (c *NoOpCache) GetResponse(ctx context.Context, key string) (string, error) {
	return "", nil
}

// SetResponse does nothing and always succeeds
func (c *NoOpCache) SetResponse(ctx context.Context, key string, text string, ttl time.Duration) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
