package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/jsonx"
	"conduit/internal/logging"
)

// httpBase holds what the HTTP provider clients share.
type httpBase struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

func newHTTPBase(provider, defaultBaseURL string, config Config) httpBase {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return httpBase{
		provider:   provider,
		model:      config.Model,
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("llm-" + provider),
	}
}

func (c *httpBase) Model() string { return c.model }

// postJSON sends body to endpoint and decodes the JSON answer into out.
func (c *httpBase) postJSON(ctx context.Context, endpoint string, headers map[string]string, body, out any) error {
	payload, err := jsonx.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &conduiterrors.ProviderError{Provider: c.provider, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &conduiterrors.ProviderError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &conduiterrors.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug("%s %s -> %d in %v", c.provider, c.model, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &conduiterrors.ProviderError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", truncate(string(data), 300)),
		}
	}
	if err := jsonx.Unmarshal(data, out); err != nil {
		return &conduiterrors.ParseError{Raw: string(data), Err: err}
	}
	return nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
