package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"kb-auditor/internal/payload"
	"kb-auditor/internal/prompt"
)

// GeminiClient calls the Gemini generateContent API with inline parts.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient builds a client for the Gemini Developer API. baseURL is
// optional and only used to point at a different endpoint.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingCredential)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: cli}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, model, system string, parts []prompt.Part) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingCredential)
	}
	gparts, err := toGenaiParts(parts)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{Role: string(genai.RoleUser), Parts: gparts}}
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr[float32](Temperature),
	})
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Message: err.Error(), Err: err}
	}
	return strings.TrimSpace(resp.Text()), nil
}

// toGenaiParts converts prompt parts; blobs travel as raw bytes which the SDK
// encodes on the wire.
func toGenaiParts(parts []prompt.Part) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Blob == nil {
			out = append(out, &genai.Part{Text: p.Text})
			continue
		}
		data, err := payload.Decode(*p.Blob)
		if err != nil {
			return nil, err
		}
		out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.Blob.MIMEType, Data: data}})
	}
	return out, nil
}
