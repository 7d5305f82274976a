package llm

import (
	"strings"

	conduiterrors "conduit/internal/errors"
)

// NewFromConfig builds the provider client named by config and wraps it with
// retries, a circuit breaker and the response cache.
func NewFromConfig(config Config) (Client, error) {
	var (
		client Client
		err    error
	)
	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	switch provider {
	case "", ProviderGemini:
		client, err = NewGeminiClient(config)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(config)
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, conduiterrors.NewConfigurationError("unsupported LLM provider %q", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	breaker := conduiterrors.NewCircuitBreaker("llm-"+provider, config.CircuitBreaker)
	client = NewRetryClient(client, config.Retry, breaker)
	return NewCachingClient(client, config.CacheSize)
}
