package llm

import (
	"context"
	"errors"

	conduiterrors "conduit/internal/errors"
	"conduit/internal/logging"
)

// retryClient retries failed generations and stops calling the provider while
// its circuit is open.
type retryClient struct {
	underlying     Client
	retryConfig    conduiterrors.RetryConfig
	circuitBreaker *conduiterrors.CircuitBreaker
	logger         logging.Logger
}

// NewRetryClient wraps client with retry and circuit breaker protection. A nil
// breaker disables the circuit.
func NewRetryClient(client Client, retryConfig conduiterrors.RetryConfig, circuitBreaker *conduiterrors.CircuitBreaker) Client {
	if retryConfig.RetryIf == nil {
		retryConfig.RetryIf = retryable
	}
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logging.NewComponentLogger("llm-retry"),
	}
}

// retryable retries everything except configuration problems and an open
// circuit; a malformed answer may well parse on the next attempt.
func retryable(err error) bool {
	switch conduiterrors.KindOf(err) {
	case conduiterrors.KindConfiguration:
		return false
	case conduiterrors.KindParse:
		return true
	}
	var open *conduiterrors.CircuitOpenError
	if errors.As(err, &open) {
		return false
	}
	return true
}

func (c *retryClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	return conduiterrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (map[string]any, error) {
		return conduiterrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (map[string]any, error) {
			return c.underlying.GenerateStructured(ctx, prompt)
		})
	}, c.logger)
}

func (c *retryClient) Model() string { return c.underlying.Model() }
