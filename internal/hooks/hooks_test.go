package hooks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"conduit/internal/agent"
	"conduit/internal/logging"
	"conduit/internal/memory"
	"conduit/internal/workflow"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func buildWorkflow(t *testing.T, failSecond bool, hooks ...workflow.Hook) *workflow.Orchestrator {
	t.Helper()
	ok := agent.ExecutorFunc(func(context.Context, agent.Input, agent.ContextView) (any, error) {
		return agent.NewOutput(map[string]any{"ok": true}).WithMetadata("tokens_used", 12), nil
	})
	second := ok
	if failSecond {
		second = func(context.Context, agent.Input, agent.ContextView) (any, error) {
			return nil, errors.New("second broke\nstack line")
		}
	}
	o, err := workflow.New([]workflow.Step{
		workflow.NewStep(agent.MustNew(agent.Info{Name: "alpha"}, ok)),
		workflow.NewStep(agent.MustNew(agent.Info{Name: "beta"}, second)),
	}, workflow.WithHooks(workflow.NewHooks(logging.Nop(), hooks...)))
	require.NoError(t, err)
	return o
}

func TestLoggingHookLogsLifecycle(t *testing.T) {
	logs := logging.NewRecorder()
	o := buildWorkflow(t, true, NewLoggingHook(logs))

	_, err := o.Run(context.Background(), agent.NewInput(map[string]any{"goal": "grow"}, nil), nil)
	require.NoError(t, err)

	require.Len(t, logs.Filter("info", `workflow started: {"metadata":{},"payload":{"goal":"grow"}}`), 1)
	require.Len(t, logs.Filter("info", "agent alpha finished"), 1)
	require.Len(t, logs.Filter("error", "agent beta failed"), 1)
	require.Empty(t, logs.Filter("error", "stack line"))
	require.Len(t, logs.Filter("info", "workflow finished: status=error steps=2"), 1)
}

func TestMemoryHookPersistsFailedAndSuccessfulRuns(t *testing.T) {
	store, err := memory.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	_, err = buildWorkflow(t, false, NewMemoryHook(store)).Run(context.Background(), agent.NewInput(nil, nil), nil)
	require.NoError(t, err)
	_, err = buildWorkflow(t, true, NewMemoryHook(store)).Run(context.Background(), agent.NewInput(nil, nil), nil)
	require.NoError(t, err)

	runs, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, agent.StatusError, runs[1].Records[1].Status)
	require.Equal(t, runs[0].Records[0].RunID, runs[0].RunID)
}

func TestMetricsHookRecordsRunsAndTokens(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	_, err = buildWorkflow(t, false, metrics.Hook()).Run(context.Background(), agent.NewInput(nil, nil), nil)
	require.NoError(t, err)
	_, err = buildWorkflow(t, true, metrics.Hook()).Run(context.Background(), agent.NewInput(nil, nil), nil)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				key := m.Name
				if status, ok := dp.Attributes.Value(attribute.Key("status")); ok {
					key += "/" + status.AsString()
				}
				sums[key] += dp.Value
			}
		}
	}
	require.Equal(t, int64(1), sums["conduit.workflow.runs/success"])
	require.Equal(t, int64(1), sums["conduit.workflow.runs/error"])
	require.Equal(t, int64(3), sums["conduit.agent.runs/success"])
	require.Equal(t, int64(1), sums["conduit.agent.runs/error"])
	require.Equal(t, int64(36), sums["conduit.agent.tokens"])
}

func TestTracingHookEmitsNestedSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	hook := NewTracingHook(provider.Tracer("test"))

	_, err := buildWorkflow(t, true, hook).Run(context.Background(), agent.NewInput(nil, nil), nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, "agent.run", spans[0].Name())
	require.Equal(t, "agent.run", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "ExecutionError: second broke", spans[1].Status().Description)
	run := spans[2]
	require.Equal(t, "workflow.run", run.Name())
	require.Equal(t, run.SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestTracingHookAbortEndsOpenSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	hook := NewTracingHook(provider.Tracer("test"))

	require.NoError(t, hook.OnWorkflowStart(context.Background(), agent.NewInput(nil, nil)))
	hook.Abort(errors.New("guardrail"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
