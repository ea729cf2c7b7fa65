package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RelayPath is the server endpoint that holds the OpenAI key.
const RelayPath = "/api/evaluate/openai"

// RelayRequest is the body accepted by the relay endpoint.
type RelayRequest struct {
	SystemInstruction string `json:"systemInstruction" validate:"required"`
	Prompt            string `json:"prompt" validate:"required"`
	Model             string `json:"model"`
}

// RelayResponse is the success body of the relay endpoint.
type RelayResponse struct {
	Text string `json:"text"`
}

// RelayClient reaches OpenAI through a server's relay endpoint so that the
// caller never holds the OpenAI key.
type RelayClient struct {
	url    string
	client *http.Client
}

// NewRelayClient returns a client for the server at baseURL.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		url:    strings.TrimRight(baseURL, "/") + RelayPath,
		client: &http.Client{},
	}
}

func (c *RelayClient) Complete(ctx context.Context, model, system, userPrompt string) (string, error) {
	body, err := json.Marshal(RelayRequest{SystemInstruction: system, Prompt: userPrompt, Model: model})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "openai relay", Message: "relay unavailable", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: "openai relay", Message: "failed to read relay response", Err: err}
	}
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return "", fmt.Errorf("%w: %s", ErrPayloadTooLarge, relayMessage(respBody, "request rejected by relay"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: "openai relay", Message: relayMessage(respBody, "Failed to evaluate with OpenAI")}
	}
	var out RelayResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &ProviderError{Provider: "openai relay", Message: "malformed relay response", Err: err}
	}
	return out.Text, nil
}

func relayMessage(body []byte, fallback string) string {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.Error
	}
	return fallback
}
