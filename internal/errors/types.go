package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Error kinds reported in run records ("<kind>: <message>").
const (
	KindInputValidation = "InputValidationError"
	KindExecution       = "ExecutionError"
	KindOutputCoercion  = "OutputCoercionError"
	KindProvider        = "ProviderError"
	KindParse           = "ParseError"
	KindGuardrail       = "GuardrailViolation"
	KindConfiguration   = "ConfigurationError"
	KindPanic           = "Panic"
)

// Kinded is implemented by errors that name their own kind.
type Kinded interface {
	Kind() string
}

// KindOf returns the kind of the first Kinded error in err's chain, or
// KindExecution when none is found.
func KindOf(err error) string {
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindExecution
}

// FieldError describes one invalid or missing input field.
type FieldError struct {
	Field  string
	Reason string
}

// InputValidationError is returned when an agent's input does not match its
// declared schema.
type InputValidationError struct {
	Fields []FieldError
	Err    error
}

// NewInputValidationError builds an error for a single field.
func NewInputValidationError(field, reason string) *InputValidationError {
	return &InputValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

func (e *InputValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}
		return "invalid input"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Reason)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return strings.Join(parts, "; ")
}

func (e *InputValidationError) Unwrap() error { return e.Err }
func (e *InputValidationError) Kind() string  { return KindInputValidation }

// ExecutionError wraps a failure raised while an agent prepares, executes or
// finalizes. Stack is set when the failure was a recovered panic.
type ExecutionError struct {
	Class string
	Err   error
	Stack string
}

// NewExecutionError wraps err under kind.
func NewExecutionError(kind string, err error) *ExecutionError {
	return &ExecutionError{Class: kind, Err: err}
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "execution failed"
	}
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Kind() string {
	if e.Class == "" {
		return KindExecution
	}
	return e.Class
}

// ProviderError is a transport or authentication failure talking to a
// generation provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
func (e *ProviderError) Kind() string  { return KindProvider }

// ParseError means a provider answered with something that is not a JSON
// object, even after repair.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider response is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Kind() string  { return KindParse }

// GuardrailViolation aborts a workflow run. It is the only observer failure
// that escapes the hook broadcaster.
type GuardrailViolation struct {
	Rule    string
	Message string
}

// NewGuardrailViolation builds a violation for rule.
func NewGuardrailViolation(rule, format string, args ...any) *GuardrailViolation {
	return &GuardrailViolation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func (e *GuardrailViolation) Error() string { return e.Message }
func (e *GuardrailViolation) Kind() string  { return KindGuardrail }

// IsGuardrailViolation reports whether err carries a GuardrailViolation.
func IsGuardrailViolation(err error) bool {
	var violation *GuardrailViolation
	return errors.As(err, &violation)
}

// ConfigurationError is raised at construction time for invalid wiring such
// as an empty workflow or a missing provider credential.
type ConfigurationError struct {
	Message string
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string { return e.Message }
func (e *ConfigurationError) Kind() string  { return KindConfiguration }

// IsConfiguration reports whether err carries a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsTransient reports whether err is worth retrying: network failures,
// throttling and 5xx provider responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}
	var openErr *CircuitOpenError
	if errors.As(err, &openErr) {
		return false
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode > 0 {
		return isTransientHTTPStatus(providerErr.StatusCode)
	}
	if isNetworkError(err) || isSyscallError(err) {
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "timeout"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
