// Package llm provides structured-output generation clients used by
// LLM-backed agents.
package llm

import (
	"context"
	"time"

	conduiterrors "conduit/internal/errors"
)

// Client generates a JSON object for a prompt. Transport and authentication
// failures are *errors.ProviderError; malformed answers are *errors.ParseError.
type Client interface {
	GenerateStructured(ctx context.Context, prompt string) (map[string]any, error)
	Model() string
}

// Providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config configures a provider client and its decorators.
type Config struct {
	Provider       string                             `mapstructure:"provider" yaml:"provider"`
	Model          string                             `mapstructure:"model" yaml:"model"`
	APIKey         string                             `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string                             `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration                      `mapstructure:"timeout" yaml:"timeout"`
	CacheSize      int                                `mapstructure:"cache_size" yaml:"cache_size"`
	Retry          conduiterrors.RetryConfig          `mapstructure:"retry" yaml:"retry"`
	CircuitBreaker conduiterrors.CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// DefaultConfig returns the Gemini defaults.
func DefaultConfig() Config {
	return Config{
		Provider:       ProviderGemini,
		Model:          "gemini-3-flash-preview",
		Timeout:        60 * time.Second,
		CacheSize:      128,
		Retry:          conduiterrors.DefaultRetryConfig(),
		CircuitBreaker: conduiterrors.DefaultCircuitBreakerConfig(),
	}
}

const structuredPreamble = "Respond ONLY in valid JSON, nothing else.\nNo explanation.\nNo markdown.\n\n"

// WrapPrompt prefixes prompt with the JSON-only instruction sent to every
// provider.
func WrapPrompt(prompt string) string {
	return structuredPreamble + prompt
}
