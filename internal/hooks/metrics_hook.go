package hooks

import (
	"context"
	"fmt"

	"conduit/internal/agent"
	"conduit/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the workflow instruments. Build it once per meter and share
// it between runs.
type Metrics struct {
	workflowRuns  metric.Int64Counter
	agentRuns     metric.Int64Counter
	agentDuration metric.Float64Histogram
	agentTokens   metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	workflowRuns, err := meter.Int64Counter(
		"conduit.workflow.runs",
		metric.WithDescription("Completed workflow runs by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow runs counter: %w", err)
	}
	agentRuns, err := meter.Int64Counter(
		"conduit.agent.runs",
		metric.WithDescription("Agent invocations by agent and status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}
	agentDuration, err := meter.Float64Histogram(
		"conduit.agent.duration",
		metric.WithDescription("Agent invocation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}
	agentTokens, err := meter.Int64Counter(
		"conduit.agent.tokens",
		metric.WithDescription("Tokens reported by agents"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent tokens counter: %w", err)
	}
	return &Metrics{
		workflowRuns:  workflowRuns,
		agentRuns:     agentRuns,
		agentDuration: agentDuration,
		agentTokens:   agentTokens,
	}, nil
}

// Hook returns an observer recording into m.
func (m *Metrics) Hook() *MetricsHook {
	return &MetricsHook{metrics: m}
}

// MetricsHook records run counts, latencies and token usage.
type MetricsHook struct {
	metrics *Metrics
}

func (h *MetricsHook) Name() string { return "metrics" }

func (h *MetricsHook) OnWorkflowEnd(ctx context.Context, result *workflow.Result, _ []agent.RunRecord) error {
	h.metrics.workflowRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(result.Status))))
	return nil
}

func (h *MetricsHook) AfterAgent(ctx context.Context, a agent.Agent, _ agent.Output, rec agent.RunRecord) error {
	h.record(ctx, a.Name(), rec)
	return nil
}

func (h *MetricsHook) OnAgentError(ctx context.Context, a agent.Agent, _ string, rec agent.RunRecord) error {
	h.record(ctx, a.Name(), rec)
	return nil
}

func (h *MetricsHook) record(ctx context.Context, name string, rec agent.RunRecord) {
	attrs := metric.WithAttributes(
		attribute.String("agent", name),
		attribute.String("status", string(rec.Status)),
	)
	h.metrics.agentRuns.Add(ctx, 1, attrs)
	h.metrics.agentDuration.Record(ctx, rec.Duration().Seconds(), attrs)
	if rec.TokensUsed != nil {
		h.metrics.agentTokens.Add(ctx, int64(*rec.TokensUsed), metric.WithAttributes(attribute.String("agent", name)))
	}
}
