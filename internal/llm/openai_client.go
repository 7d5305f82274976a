package llm

import (
	"context"
	"errors"
	"strings"

	conduiterrors "conduit/internal/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openaiClient struct {
	httpBase
}

// NewOpenAIClient builds a client for any OpenAI-compatible chat completions
// endpoint. A missing API key is a ConfigurationError.
func NewOpenAIClient(config Config) (Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, conduiterrors.NewConfigurationError("OPENAI_API_KEY is not set")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	return &openaiClient{httpBase: newHTTPBase(ProviderOpenAI, defaultOpenAIBaseURL, config)}, nil
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model          string            `json:"model"`
	Messages       []openaiMessage   `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

func (c *openaiClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	req := openaiRequest{
		Model:          c.model,
		Messages:       []openaiMessage{{Role: "user", Content: WrapPrompt(prompt)}},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	var resp openaiResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.postJSON(ctx, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &conduiterrors.ParseError{Err: errors.New("openai returned no choices")}
	}
	return ParseStructured(resp.Choices[0].Message.Content)
}
