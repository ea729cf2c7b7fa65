package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"kb-auditor/internal/prompt"
)

// Cache stores provider responses for identical requests.
type Cache interface {
	// GetResponse retrieves a cached response by key.
	// Returns "" if not found.
	GetResponse(ctx context.Context, key string) (string, error)

	// SetResponse stores a response with TTL.
	SetResponse(ctx context.Context, key string, text string, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// GenerateKey derives a stable key from everything that reaches the provider:
// provider, model, system instruction (which embeds the knowledge base) and
// every part in order.
func GenerateKey(provider string, req prompt.Request) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(provider)
	write(req.Model)
	write(req.SystemInstruction)
	for _, p := range req.Parts {
		if p.Blob != nil {
			write("blob")
			write(p.Blob.Name)
			write(p.Blob.MIMEType)
			write(p.Blob.Data)
			continue
		}
		write("text")
		write(p.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
