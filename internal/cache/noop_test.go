package cache

import (
	"context"
	"testing"
	"time"
)

// TestNoOpCache verifies that NoOpCache implements the Cache interface correctly
func TestNoOpCache(t *testing.T) {
	var cache Cache = NewNoOpCache()
	ctx := context.Background()

	// Test GetResponse - should always return "" (cache miss)
	text, err := cache.GetResponse(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty result (cache miss), got %q", text)
	}

	// Test SetResponse - should succeed silently
	if err := cache.SetResponse(ctx, "test-key", "# Report", 1*time.Hour); err != nil {
		t.Errorf("Expected no error on SetResponse, got %v", err)
	}

	// Verify it still returns "" (nothing was actually cached)
	text, err = cache.GetResponse(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty result (no-op cache doesn't store), got %q", text)
	}

	// Test Close - should succeed silently
	if err := cache.Close(); err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}
