package llm

import (
	"context"
	"errors"

	"kb-auditor/internal/prompt"
)

// Temperature is used for every provider call.
const Temperature = 0.2

// TextClient sends a system instruction and a single plain-text prompt.
// A model that produced no text yields "" and a nil error.
type TextClient interface {
	Complete(ctx context.Context, model, system, userPrompt string) (string, error)
}

// StructuredClient sends a system instruction and a list of text and inline
// binary parts. Empty output is returned as "" like TextClient.
type StructuredClient interface {
	Generate(ctx context.Context, model, system string, parts []prompt.Part) (string, error)
}

var (
	// ErrMissingCredential is returned before any network call when the
	// provider's API key is not configured.
	ErrMissingCredential = errors.New("provider credential is not configured")
	// ErrPayloadTooLarge is returned when the request exceeds a size ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ProviderError is a failure reported by, or while talking to, a provider.
// Message is the provider's own message when it sent one.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
