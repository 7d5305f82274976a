package hooks

import (
	"context"

	"conduit/internal/agent"
	"conduit/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook emits one span per run and a child span per agent. It keeps
// per-run state, so build a new one for every run.
type TracingHook struct {
	tracer   trace.Tracer
	runSpan  trace.Span
	runCtx   context.Context
	stepSpan trace.Span
}

// NewTracingHook returns a hook starting spans on tracer.
func NewTracingHook(tracer trace.Tracer) *TracingHook {
	return &TracingHook{tracer: tracer}
}

func (h *TracingHook) Name() string { return "tracing" }

func (h *TracingHook) OnWorkflowStart(ctx context.Context, initial agent.Input) error {
	h.runCtx, h.runSpan = h.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.Int("workflow.payload_keys", len(initial.Payload))))
	return nil
}

func (h *TracingHook) BeforeAgent(ctx context.Context, a agent.Agent, _ agent.Input) error {
	parent := h.runCtx
	if parent == nil {
		parent = ctx
	}
	_, h.stepSpan = h.tracer.Start(parent, "agent.run",
		trace.WithAttributes(attribute.String("agent.name", a.Name())))
	return nil
}

func (h *TracingHook) AfterAgent(_ context.Context, _ agent.Agent, out agent.Output, rec agent.RunRecord) error {
	if h.stepSpan == nil {
		return nil
	}
	h.stepSpan.SetAttributes(
		attribute.String("agent.run_id", rec.RunID),
		attribute.Float64("agent.confidence", out.Confidence),
	)
	h.stepSpan.End()
	h.stepSpan = nil
	return nil
}

func (h *TracingHook) OnAgentError(_ context.Context, _ agent.Agent, errMsg string, rec agent.RunRecord) error {
	if h.stepSpan == nil {
		return nil
	}
	h.stepSpan.SetAttributes(attribute.String("agent.run_id", rec.RunID))
	h.stepSpan.SetStatus(codes.Error, firstLine(errMsg))
	h.stepSpan.End()
	h.stepSpan = nil
	return nil
}

func (h *TracingHook) OnWorkflowEnd(_ context.Context, result *workflow.Result, history []agent.RunRecord) error {
	if h.runSpan == nil {
		return nil
	}
	h.runSpan.SetAttributes(
		attribute.String("workflow.status", string(result.Status)),
		attribute.Int("workflow.steps", len(history)),
	)
	if result.Status != workflow.StatusSuccess {
		h.runSpan.SetStatus(codes.Error, "agent failed")
	}
	h.runSpan.End()
	h.runSpan = nil
	return nil
}

// Abort ends any open spans after a run was aborted by err.
func (h *TracingHook) Abort(err error) {
	for _, span := range []trace.Span{h.stepSpan, h.runSpan} {
		if span == nil {
			continue
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
	}
	h.stepSpan, h.runSpan = nil, nil
}
