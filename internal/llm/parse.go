package llm

import (
	"errors"
	"strings"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/jsonx"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStructured decodes a provider answer into a JSON object. Markdown code
// fences are stripped and malformed JSON is repaired before giving up.
func ParseStructured(raw string) (map[string]any, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return nil, &conduiterrors.ParseError{Raw: raw, Err: errors.New("empty response")}
	}

	var out map[string]any
	err := jsonx.Unmarshal([]byte(text), &out)
	if err == nil && out != nil {
		return out, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return nil, &conduiterrors.ParseError{Raw: raw, Err: errors.Join(err, repairErr)}
	}
	out = nil
	if err := jsonx.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, &conduiterrors.ParseError{Raw: raw, Err: err}
	}
	if out == nil {
		return nil, &conduiterrors.ParseError{Raw: raw, Err: errors.New("response is not a JSON object")}
	}
	return out, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
