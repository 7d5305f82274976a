package marketing

import (
	"context"

	"conduit/internal/agent"
	"conduit/internal/guardrail"
	"conduit/internal/hooks"
	"conduit/internal/logging"
	"conduit/internal/memory"
	"conduit/internal/observability"
	"conduit/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Deps are the collaborators a Runner wires into every run.
type Deps struct {
	Agents    Agents
	Guardrail guardrail.Config
	// Store persists finished runs; nil disables history.
	Store memory.Store
	// Metrics records run and agent instruments; nil disables them.
	Metrics *hooks.Metrics
	Tracer  trace.Tracer
	Logger  logging.Logger
	// Observers are appended after the bundled hooks.
	Observers []workflow.Hook
}

// Runner executes the marketing workflow. Stateful observers (guardrail,
// tracing) are built per run, so a Runner may serve concurrent runs.
type Runner struct {
	deps  Deps
	steps []workflow.Step
}

// NewRunner validates the workflow once and returns a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	if logging.IsNil(deps.Logger) {
		deps.Logger = logging.NewComponentLogger("marketing")
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("conduit")
	}
	steps := NewWorkflow(deps.Agents)
	if _, err := workflow.New(steps); err != nil {
		return nil, err
	}
	return &Runner{deps: deps, steps: steps}, nil
}

// Run executes one workflow run. A non-nil error means the run was aborted
// and there is no Result.
func (r *Runner) Run(ctx context.Context, in agent.Input) (*workflow.Result, error) {
	runID := uuid.NewString()
	ctx = observability.ContextWithRunID(ctx, runID)

	tracing := hooks.NewTracingHook(r.deps.Tracer)
	observers := []workflow.Hook{hooks.NewLoggingHook(r.deps.Logger), tracing}
	if r.deps.Metrics != nil {
		observers = append(observers, r.deps.Metrics.Hook())
	}
	if r.deps.Guardrail.Enabled() {
		observers = append(observers, guardrail.New(r.deps.Guardrail))
	}
	observers = append(observers, r.deps.Observers...)
	if r.deps.Store != nil {
		observers = append(observers, hooks.NewMemoryHook(r.deps.Store))
	}

	orchestrator, err := workflow.New(r.steps,
		workflow.WithHooks(workflow.NewHooks(r.deps.Logger, observers...)),
		workflow.WithLogger(r.deps.Logger),
	)
	if err != nil {
		return nil, err
	}

	result, err := orchestrator.Run(ctx, in, nil)
	if err != nil {
		tracing.Abort(err)
		r.deps.Logger.Warn("workflow run %s aborted: %v", runID, err)
		return nil, err
	}
	return result, nil
}
