package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatCompletion = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",` +
	`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  # XML Conversion Audit Report\n"}}]}`

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestOpenAIClientComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", srv.URL+"/v1/")
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "", "SYSTEM", "/update x")
	require.NoError(t, err)
	assert.Equal(t, "# XML Conversion Audit Report", text)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "SYSTEM", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "/update x", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClientDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", srv.URL)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "gpt-4o", "s", "p")

	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "openai", perr.Provider)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClientPayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":{"message":"too big"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", srv.URL)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "gpt-4o", "s", "p")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", srv.URL)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "gpt-4o", "s", "p")
	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
}

func TestOpenAIClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":null}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", srv.URL)
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "gpt-4o", "s", "p")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNilOpenAIClient(t *testing.T) {
	var c *OpenAIClient
	_, err := c.Complete(context.Background(), "gpt-4o", "s", "p")
	assert.ErrorIs(t, err, ErrMissingCredential)
}
