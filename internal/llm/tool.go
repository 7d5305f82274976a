package llm

import (
	"context"
	"fmt"
	"strings"

	"conduit/internal/agent"
	"conduit/internal/tokenutil"
)

// ToolName is the name agents use to look up the LLM tool.
const ToolName = "llm"

// Tool exposes a Client to agents. It takes a "prompt" argument and returns
// {"response": <object>, "tokens_used": <int>}.
type Tool struct {
	client Client
	count  func(string) int
}

// NewTool wraps client. count estimates tokens for prompt and answer; nil
// uses tokenutil.CountTokens.
func NewTool(client Client, count func(string) int) *Tool {
	if count == nil {
		count = tokenutil.CountTokens
	}
	return &Tool{client: client, count: count}
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	prompt, _ := args["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%s tool: prompt is required", ToolName)
	}
	response, err := t.client.GenerateStructured(ctx, prompt)
	if err != nil {
		return nil, err
	}
	tokens := t.count(prompt) + t.count(fmt.Sprint(response))
	return map[string]any{
		"response":    response,
		"tokens_used": tokens,
		"model":       t.client.Model(),
	}, nil
}

var _ agent.Tool = (*Tool)(nil)
