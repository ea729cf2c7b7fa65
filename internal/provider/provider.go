// Package provider routes a built request to the model provider selected by
// the model identifier.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kb-auditor/internal/cache"
	"kb-auditor/internal/llm"
	"kb-auditor/internal/prompt"
)

// Provider is the closed set of model vendors the router knows about.
type Provider int

const (
	Gemini Provider = iota + 1
	OpenAI
	Anthropic
)

func (p Provider) String() string {
	switch p {
	case Gemini:
		return "gemini"
	case OpenAI:
		return "openai"
	case Anthropic:
		return "anthropic"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

var (
	// ErrUnsupportedModel is returned for a model identifier no provider claims.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrNotImplemented is returned for a known provider that has no integration yet.
	ErrNotImplemented = errors.New("provider integration not implemented")
)

// Resolve picks the provider for model by prefix.
func Resolve(model string) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "gemini"):
		return Gemini, nil
	case strings.HasPrefix(model, "gpt"):
		return OpenAI, nil
	case strings.HasPrefix(model, "claude"):
		return Anthropic, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
}

// Router dispatches requests to the configured clients. A nil client means the
// provider's credential is missing.
type Router struct {
	Structured llm.StructuredClient
	Text       llm.TextClient
	Cache      cache.Cache
	CacheTTL   time.Duration
	Log        *slog.Logger
}

// Evaluate sends req to the provider selected by req.Model and returns the
// response text.
func (r *Router) Evaluate(ctx context.Context, req prompt.Request) (string, error) {
	p, err := Resolve(req.Model)
	if err != nil {
		return "", err
	}

	switch p {
	case Gemini:
		if r.Structured == nil {
			return "", fmt.Errorf("%w: GEMINI_API_KEY is not set", llm.ErrMissingCredential)
		}
		return r.cached(ctx, p, req, func() (string, error) {
			return r.Structured.Generate(ctx, req.Model, req.SystemInstruction, req.Parts)
		})
	case OpenAI:
		if r.Text == nil {
			return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", llm.ErrMissingCredential)
		}
		flat, err := prompt.Flatten(req)
		if err != nil {
			return "", err
		}
		return r.cached(ctx, p, req, func() (string, error) {
			return r.Text.Complete(ctx, req.Model, req.SystemInstruction, flat)
		})
	case Anthropic:
		return "", fmt.Errorf("%w: model %s is configured but the Anthropic API integration is not yet implemented", ErrNotImplemented, req.Model)
	default:
		panic(fmt.Sprintf("provider: unhandled %v", p))
	}
}

// cached serves a stored response for an identical request, or calls fetch
// and stores its result. Cache failures never fail the request.
func (r *Router) cached(ctx context.Context, p Provider, req prompt.Request, fetch func() (string, error)) (string, error) {
	if r.Cache == nil {
		return fetch()
	}
	key := cache.GenerateKey(p.String(), req)
	if text, err := r.Cache.GetResponse(ctx, key); err != nil {
		r.logger().Warn("cache read failed", "err", err, "provider", p.String())
	} else if text != "" {
		r.logger().Info("cache hit", "provider", p.String(), "model", req.Model, "mode", req.Mode)
		return text, nil
	}

	text, err := fetch()
	if err != nil || text == "" {
		return text, err
	}
	if err := r.Cache.SetResponse(ctx, key, text, r.CacheTTL); err != nil {
		r.logger().Warn("failed to cache response", "err", err, "provider", p.String())
	}
	return text, nil
}

func (r *Router) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
