package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"conduit/internal/logging"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindExecution, KindOf(errors.New("plain")))
	require.Equal(t, KindInputValidation, KindOf(NewInputValidationError("goal", "is required")))
	require.Equal(t, KindOutputCoercion, KindOf(NewExecutionError(KindOutputCoercion, errors.New("bad"))))
	require.Equal(t, KindProvider, KindOf(fmt.Errorf("call: %w", &ProviderError{Provider: "gemini", Err: errors.New("x")})))
	require.Equal(t, KindParse, KindOf(&ParseError{Err: errors.New("eof")}))
	require.Equal(t, KindGuardrail, KindOf(NewGuardrailViolation("max_steps", "too many")))
	require.Equal(t, KindConfiguration, KindOf(NewConfigurationError("empty")))
}

func TestInputValidationErrorMessage(t *testing.T) {
	err := &InputValidationError{Fields: []FieldError{
		{Field: "goal", Reason: "is required"},
		{Reason: "payload must be an object"},
	}}
	require.Equal(t, "goal: is required; payload must be an object", err.Error())
}

func TestGuardrailViolationDetectedThroughWrapping(t *testing.T) {
	err := fmt.Errorf("hook: %w", NewGuardrailViolation("blocked_agent", "agent %q is blocked", "x"))
	require.True(t, IsGuardrailViolation(err))
	require.False(t, IsGuardrailViolation(errors.New("x")))
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(&ProviderError{Provider: "p", StatusCode: 503, Err: errors.New("unavailable")}))
	require.True(t, IsTransient(&ProviderError{Provider: "p", StatusCode: 429, Err: errors.New("slow down")}))
	require.False(t, IsTransient(&ProviderError{Provider: "p", StatusCode: 401, Err: errors.New("bad key")}))
	require.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	require.False(t, IsTransient(NewConfigurationError("missing key")))
	require.False(t, IsTransient(nil))
}

func TestRetryReturnsOriginalErrorAfterFinalAttempt(t *testing.T) {
	sentinel := errors.New("still broken")
	calls := 0
	_, err := RetryWithResultAndLog(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Backoff: BackoffFixed},
		func(context.Context) (int, error) {
			calls++
			return 0, sentinel
		}, logging.Nop())
	require.Same(t, sentinel, err)
	require.Equal(t, 3, calls)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond},
		func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 2, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, RetryIf: IsTransient},
		func(context.Context) error {
			calls++
			return NewConfigurationError("no key")
		})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, DefaultRetryConfig(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	fixed := RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Backoff: BackoffFixed}
	require.Equal(t, time.Second, calculateBackoff(3, fixed))

	exp := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Backoff: BackoffExponential}
	require.Equal(t, 4*time.Second, calculateBackoff(2, exp))
	require.Equal(t, 5*time.Second, calculateBackoff(6, exp))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("gemini", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, errors.New("boom") }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = ExecuteFunc(cb, context.Background(), fail)
	_, _ = ExecuteFunc(cb, context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	_, err := ExecuteFunc(cb, context.Background(), ok)
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	require.False(t, IsTransient(err))

	now = now.Add(2 * time.Minute)
	got, err := ExecuteFunc(cb, context.Background(), ok)
	require.NoError(t, err)
	require.Equal(t, 1, got)
	require.Equal(t, StateClosed, cb.State())
}
