package config

import (
	"os"
	"testing"
	"time"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	if v, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { os.Setenv(key, v) })
	}
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "REQUEST_TIMEOUT", "MAX_REQUEST_SIZE", "KB_PATH", "KB_WATCH",
		"DEFAULT_MODEL", "RELAY_URL", "CACHE_PROVIDER", "CACHE_TTL", "EVENTS_PROVIDER",
	} {
		unsetenv(t, key)
	}

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"RequestTimeout", cfg.RequestTimeout, 5 * time.Minute},
		{"MaxRequestSize", cfg.MaxRequestSize, int64(50 << 20)},
		{"KBPath", cfg.KBPath, "knowledge_base.md"},
		{"KBWatch", cfg.KBWatch, true},
		{"DefaultModel", cfg.DefaultModel, "gemini-3.1-pro-preview"},
		{"RelayURL", cfg.RelayURL, "http://localhost:8080"},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"CacheTTL", cfg.CacheTTL, 3600},
		{"EventsProvider", cfg.EventsProvider, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KB_PATH", "/data/rules.md")
	t.Setenv("MAX_REQUEST_SIZE", "4718592")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.KBPath != "/data/rules.md" {
		t.Errorf("expected kb path '/data/rules.md', got %s", cfg.KBPath)
	}
	if cfg.MaxRequestSize != 4718592 {
		t.Errorf("expected max request size 4718592, got %d", cfg.MaxRequestSize)
	}
}

func TestLoadProviderOverrides(t *testing.T) {
	t.Setenv("CACHE_PROVIDER", "redis")
	t.Setenv("EVENTS_PROVIDER", "nats")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	if cfg.CacheProvider != "redis" {
		t.Errorf("expected cache provider 'redis', got %s", cfg.CacheProvider)
	}
	if cfg.EventsProvider != "nats" {
		t.Errorf("expected events provider 'nats', got %s", cfg.EventsProvider)
	}
	if cfg.OpenAIKey != "sk-test" {
		t.Errorf("expected openai key to be read, got %q", cfg.OpenAIKey)
	}
}
