package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestNewLoggerJSONIncludesRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: buf})

	ctx := ContextWithRunID(context.Background(), "run-42")
	logger.WithContext(ctx).Debug("step finished", "agent", "a")

	require.Contains(t, buf.String(), `"workflow_run":"run-42"`)
	require.Contains(t, buf.String(), `"agent":"a"`)
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "warn", Output: buf})
	logger.Info("hidden")
	require.Empty(t, buf.String())
	logger.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestSanitizeAPIKey(t *testing.T) {
	require.Equal(t, "***", SanitizeAPIKey("short"))
	require.Equal(t, "abcdefgh...wxyz", SanitizeAPIKey("abcdefgh-1234567-wxyz"))
}

func TestMetricsProviderServesPrometheus(t *testing.T) {
	provider, err := NewMetricsProvider(MetricsConfig{Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	counter, err := provider.Meter().Int64Counter("conduit.test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3, metric.WithAttributes())

	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "conduit_test_events")
}

func TestMetricsProviderDisabled(t *testing.T) {
	provider, err := NewMetricsProvider(MetricsConfig{})
	require.NoError(t, err)
	require.NotNil(t, provider.Meter())

	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTracerProviderDisabledIsNoop(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	_, span := tp.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Enabled: true, Exporter: "carrier-pigeon"})
	require.Error(t, err)
}
