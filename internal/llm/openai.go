package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when a request names no model.
const DefaultOpenAIModel = openai.ChatModelGPT4o

// OpenAIClient calls the OpenAI Chat Completions API. It is the only holder
// of the OpenAI key and lives server-side.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client against api.openai.com, or baseURL when set.
// The SDK's automatic retries are disabled.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIClient{client: &cli}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, model, system, userPrompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    buildMessages(system, userPrompt),
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Message: "no choices returned"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}

// openAIError keeps the API's own message when there is one.
func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusRequestEntityTooLarge {
			return fmt.Errorf("%w: %s", ErrPayloadTooLarge, apiErr.Message)
		}
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", apiErr.StatusCode)
		}
		return &ProviderError{Provider: "openai", Message: msg, Err: err}
	}
	return &ProviderError{Provider: "openai", Message: "Failed to communicate with OpenAI", Err: err}
}
