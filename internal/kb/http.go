package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStore reads and writes the knowledge base through a running server's
// /api/kb endpoint.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore returns a store talking to the server at baseURL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) Load(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/kb", nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("load knowledge base: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("load knowledge base: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("load knowledge base: %s", errorMessage(resp.StatusCode, body))
	}
	return string(body), nil
}

func (s *HTTPStore) Save(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/kb", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrReadOnly, errorMessage(resp.StatusCode, respBody))
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("save knowledge base: %s", errorMessage(resp.StatusCode, respBody))
	}
	return nil
}

// errorMessage prefers the {"error": ...} field the server writes on failure.
func errorMessage(status int, body []byte) string {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.Error
	}
	return fmt.Sprintf("status %d", status)
}
