package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	conduiterrors "conduit/internal/errors"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiClient struct {
	httpBase
}

// NewGeminiClient builds a client for the Gemini generateContent API. A
// missing API key is a ConfigurationError.
func NewGeminiClient(config Config) (Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, conduiterrors.NewConfigurationError("GEMINI_API_KEY is not set")
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	return &geminiClient{httpBase: newHTTPBase(ProviderGemini, defaultGeminiBaseURL, config)}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (c *geminiClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: WrapPrompt(prompt)}}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
		},
	}
	var resp geminiResponse
	if err := c.postJSON(ctx, endpoint, map[string]string{"x-goog-api-key": c.apiKey}, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, &conduiterrors.ParseError{Err: errors.New("gemini returned no candidates")}
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return ParseStructured(text.String())
}
